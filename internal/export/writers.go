package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"dppengine/internal/passport"
	"dppengine/pkg/dpperrors"
)

// writeJSON emits a pretty-printed array. Unprojected exports serialize the
// records themselves so consumers get the canonical field shapes.
func writeJSON(records []passport.Record, _ []string, rows []map[string]any, projected bool) ([]byte, error) {
	if projected {
		return json.MarshalIndent(rows, "", "  ")
	}
	return json.MarshalIndent(records, "", "  ")
}

// writeCSV hand-assembles the pinned dialect: every value double-quoted,
// embedded quotes doubled, rows joined by newline. encoding/csv only quotes
// when needed, which is not the dialect consumers of these exports parse.
func writeCSV(headers []string, rows []map[string]any) ([]byte, error) {
	if len(rows) == 0 {
		return nil, dpperrors.New(dpperrors.CodeValidation, "csv export requires at least one record")
	}

	var b strings.Builder
	writeCSVRow(&b, headers, func(key string) string { return key })
	for _, row := range rows {
		b.WriteByte('\n')
		writeCSVRow(&b, headers, func(key string) string { return cellValue(row[key]) })
	}
	return []byte(b.String()), nil
}

func writeCSVRow(b *strings.Builder, headers []string, value func(string) string) {
	for i, key := range headers {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(value(key), `"`, `""`))
		b.WriteByte('"')
	}
}

// writeXML wraps one DigitalProductPassport element per record under a
// DPPExport root, each field a same-named child with entity-escaped text.
func writeXML(headers []string, rows []map[string]any) ([]byte, error) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n<DPPExport>")
	for _, row := range rows {
		b.WriteString("\n  <DigitalProductPassport>")
		for _, key := range headers {
			b.WriteString("\n    <")
			b.WriteString(key)
			b.WriteString(">")
			b.WriteString(escapeXML(cellValue(row[key])))
			b.WriteString("</")
			b.WriteString(key)
			b.WriteString(">")
		}
		b.WriteString("\n  </DigitalProductPassport>")
	}
	b.WriteString("\n</DPPExport>\n")
	return []byte(b.String()), nil
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

const xlsxSheet = "DPPExport"

// writeXLSX emits one sheet with the same header/row layout as csv.
func writeXLSX(headers []string, rows []map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	for col, key := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("xlsx: header cell: %w", err)
		}
		if err := f.SetCellValue(xlsxSheet, cell, key); err != nil {
			return nil, fmt.Errorf("xlsx: write header: %w", err)
		}
	}
	for i, row := range rows {
		for col, key := range headers {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("xlsx: data cell: %w", err)
			}
			if err := f.SetCellValue(xlsxSheet, cell, cellValue(row[key])); err != nil {
				return nil, fmt.Errorf("xlsx: write row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue renders a projected value for tabular formats. Nested structures
// collapse to compact JSON rather than Go's fmt notation.
func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64, bool, int, int64:
		return fmt.Sprintf("%v", val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	}
}
