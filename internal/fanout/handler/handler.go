// Package handler exposes the fan-out dispatcher over HTTP: the transaction
// update webhook and the aggregate stats document.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"solsignal/internal/alerts/models"
	"solsignal/internal/platform/middleware"
	dErrors "solsignal/pkg/domain-errors"
	"solsignal/pkg/platform/httputil"
	"solsignal/pkg/requestcontext"
)

const maxBodyBytes = 5 << 20

// Dispatcher fans activity events out to subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []models.ActivityEvent) (models.DispatchSummary, error)
}

// StatsReader reads the aggregate configuration document.
type StatsReader interface {
	Aggregate(ctx context.Context) (models.AggregateConfig, error)
}

// Handler wires the ingress endpoints to the dispatcher.
type Handler struct {
	dispatcher Dispatcher
	stats      StatsReader
	authHeader string
	secret     middleware.SecretFunc
	logger     *slog.Logger
}

// New constructs the ingress handler. authHeader names the request header that
// carries the shared secret resolved by secret on every request.
func New(dispatcher Dispatcher, stats StatsReader, authHeader string, secret middleware.SecretFunc, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		stats:      stats,
		authHeader: authHeader,
		secret:     secret,
		logger:     logger,
	}
}

// Register mounts the ingress endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.With(
		middleware.AllowMethods(http.MethodPost),
		middleware.RequireSharedSecret(h.authHeader, h.secret, h.logger),
	).Handle("/transactionupdate", http.HandlerFunc(h.HandleTransactionUpdate))
	r.Get("/stats", h.HandleStats)
}

// HandleTransactionUpdate handles POST /transactionupdate. Method and secret
// checks run in middleware before this.
func (h *Handler) HandleTransactionUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read request body"))
		return
	}

	events, err := parseEvents(body)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected transaction update",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.dispatcher.Dispatch(ctx, events)
	if err != nil {
		h.logger.ErrorContext(ctx, "transaction update dispatch failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "transaction update processed",
		"events", len(events),
		"success_count", summary.SuccessCount,
		"fail_count", summary.FailCount,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)
	httputil.WriteText(w, http.StatusOK, "OK")
}

// HandleStats handles GET /stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agg, err := h.stats.Aggregate(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read aggregate",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "stats unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agg)
}
