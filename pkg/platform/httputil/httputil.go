// Package httputil holds the shared response helpers used by every HTTP
// handler: the JSON error envelope and request decoding.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"dppengine/pkg/dpperrors"
)

// WriteError translates an engine error into the JSON error envelope. Server
// side failures keep their detail out of the response body.
func WriteError(w http.ResponseWriter, err error) {
	code := dpperrors.CodeOf(err)
	status := dpperrors.ToHTTPStatus(code)

	body := map[string]string{"error": string(code)}
	if status < http.StatusInternalServerError {
		var e *dpperrors.Error
		if errors.As(err, &e) {
			body["error_description"] = e.Message
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeAndPrepare decodes the request body into T, writing a validation error
// response and logging on malformed input. The second return reports whether
// the handler should continue.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		WriteError(w, dpperrors.New(dpperrors.CodeValidation, "invalid request body"))
		var zero T
		return zero, false
	}
	return req, true
}
