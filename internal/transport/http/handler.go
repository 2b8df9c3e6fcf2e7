package httptransport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dppengine/internal/batch"
	"dppengine/internal/export"
	"dppengine/internal/lifecycle"
	"dppengine/internal/passport"
	"dppengine/internal/passport/service"
	"dppengine/internal/platform/metrics"
	"dppengine/internal/platform/middleware"
	"dppengine/internal/provenance"
	"dppengine/pkg/dpperrors"
	"dppengine/pkg/platform/httputil"
)

// Service defines the passport operations the transport depends on.
type Service interface {
	Get(ctx context.Context, id string) (passport.Record, error)
	List(ctx context.Context, filter service.Filter) ([]passport.Record, error)
	Transition(ctx context.Context, id string, next lifecycle.Stage) (passport.Record, error)
	AddCustodyStep(ctx context.Context, id string, step provenance.CustodyStep) (passport.ProvenanceEvent, error)
	TransferOwnership(ctx context.Context, id string, step provenance.CustodyStep) (passport.ProvenanceEvent, error)
	AddLifecycleEvent(ctx context.Context, id string, ev provenance.LifecycleEvent) (passport.ProvenanceEvent, error)
	AddCertification(ctx context.Context, id string, cert service.Certification) (passport.Certification, error)
	History(ctx context.Context, id string) ([]provenance.HistoryEntry, error)
	Compliance(ctx context.Context, id string) (service.ComplianceSummary, error)
	InvalidateCompliance(ctx context.Context, id string)
}

// Batcher applies partial updates to many records.
type Batcher interface {
	Apply(ctx context.Context, items []batch.Item) batch.Result
}

// Exporter serializes record selections.
type Exporter interface {
	Run(ctx context.Context, req export.Request) (export.Export, error)
}

// Handler exposes the passport record API.
type Handler struct {
	logger       *slog.Logger
	service      Service
	batch        Batcher
	exporter     Exporter
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// NewHandler creates the passport API handler.
func NewHandler(
	svc Service,
	batcher Batcher,
	exporter Exporter,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		service:      svc,
		batch:        batcher,
		exporter:     exporter,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the passport routes with the chi router. Reads are open;
// every mutation sits behind bearer auth.
func (h *Handler) Register(r chi.Router) {
	dpps := chi.NewRouter()
	dpps.Use(middleware.Recovery(h.logger))
	dpps.Use(middleware.RequestID)
	dpps.Use(middleware.Logger(h.logger))
	dpps.Use(middleware.Timeout(30 * time.Second))
	dpps.Use(middleware.Latency(h.metrics))

	dpps.Get("/dpps", h.handleList)
	dpps.Get("/dpps/export", h.handleExport)
	dpps.Get("/dpps/{id}", h.handleGet)
	dpps.Get("/dpps/{id}/history", h.handleHistory)
	dpps.Get("/dpps/{id}/compliance", h.handleCompliance)

	dpps.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		protected.Post("/dpps/{id}/transition", h.handleTransition)
		protected.Post("/dpps/{id}/lifecycle-events", h.handleLifecycleEvent)
		protected.Post("/dpps/{id}/ownership-transfer", h.handleOwnershipTransfer)
		protected.Patch("/dpps/{id}", h.handleUpdate)
		protected.Patch("/dpps", h.handleBatch)
	})

	r.Mount("/", dpps)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	records, err := h.service.List(ctx, service.Filter{
		Status: query.Get("status"),
		Stage:  lifecycle.Stage(query.Get("stage")),
		Query:  query.Get("q"),
	})
	if err != nil {
		h.writeError(ctx, w, "list records", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: records, Count: len(records)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "get record", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	entries, err := h.service.History(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "derive history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{ID: id, Entries: entries, Count: len(entries)})
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.service.Compliance(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "aggregate compliance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.TargetStage) == "" {
		httputil.WriteError(w, dpperrors.New(dpperrors.CodeValidation, "targetStage is required"))
		return
	}

	record, err := h.service.Transition(ctx, chi.URLParam(r, "id"), lifecycle.Stage(req.TargetStage))
	if err != nil {
		h.writeError(ctx, w, "apply transition", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleLifecycleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LifecycleEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	event, err := h.service.AddLifecycleEvent(ctx, chi.URLParam(r, "id"), provenance.LifecycleEvent{
		EventType:        req.EventType,
		Timestamp:        req.Timestamp,
		Location:         req.Location,
		Details:          req.Details,
		ResponsibleParty: req.ResponsibleParty,
	})
	if err != nil {
		h.writeError(ctx, w, "append lifecycle event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) handleOwnershipTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CustodyUpdate](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	event, err := h.service.TransferOwnership(ctx, chi.URLParam(r, "id"), custodyStep(req))
	if err != nil {
		h.writeError(ctx, w, "transfer ownership", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

// handleUpdate accepts exactly one of the two update arms: a document
// reference to attach, or a chain-of-custody step to append.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	id := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	switch {
	case req.DocumentReference != nil && req.ChainOfCustodyUpdate != nil,
		req.DocumentReference == nil && req.ChainOfCustodyUpdate == nil:
		httputil.WriteError(w, dpperrors.New(dpperrors.CodeValidation,
			"exactly one of documentReference or chainOfCustodyUpdate is required"))
		return
	case req.DocumentReference != nil:
		cert, err := h.service.AddCertification(ctx, id, service.Certification{
			Name:        req.DocumentReference.Name,
			Issuer:      req.DocumentReference.Issuer,
			DocumentRef: req.DocumentReference.DocumentRef,
		})
		if err != nil {
			h.writeError(ctx, w, "add document reference", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, cert)
	default:
		event, err := h.service.AddCustodyStep(ctx, id, custodyStep(*req.ChainOfCustodyUpdate))
		if err != nil {
			h.writeError(ctx, w, "append custody step", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, event)
	}
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result := h.batch.Apply(ctx, req.Items)
	for _, item := range result.Items {
		if item.Status == batch.StatusSuccess {
			h.service.InvalidateCompliance(ctx, item.ID)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = string(export.FormatJSON)
	}

	out, err := h.exporter.Run(ctx, export.Request{
		Format: export.Format(format),
		IDs:    splitParam(query.Get("ids")),
		Fields: splitParam(query.Get("fields")),
	})
	if err != nil {
		h.writeError(ctx, w, "run export", err)
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// writeError logs and translates a service error. Server-side failures are
// logged at error level and masked; caller errors pass through with their
// description.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dpperrors.ToHTTPStatus(dpperrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"request_id", requestID,
			"op", op,
			"error", err.Error(),
		)
		httputil.WriteError(w, dpperrors.New(dpperrors.CodeInternal, "failed to "+op))
		return
	}
	h.logger.WarnContext(ctx, "request rejected",
		"request_id", requestID,
		"op", op,
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

func custodyStep(req CustodyUpdate) provenance.CustodyStep {
	return provenance.CustodyStep{
		ActorID:         req.ActorID,
		Timestamp:       req.Timestamp,
		Location:        req.Location,
		TransactionHash: req.TransactionHash,
	}
}

func splitParam(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
