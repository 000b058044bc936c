package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gateflow/gateflow/internal/repository"
)

// AnalyticsHandler serves revenue aggregates computed by the
// analytics worker.
type AnalyticsHandler struct {
	repo   *repository.Repository
	logger *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(repo *repository.Repository, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		repo:   repo,
		logger: logger,
	}
}

// Summary handles GET /api/v1/analytics/summary.
// Figures are eventually consistent: they trail checkout by the
// analytics pipeline's processing lag.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.GetRevenueSummary(r.Context())
	if err != nil {
		h.logger.Error("failed to load revenue summary", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to load analytics summary")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Revenue handles GET /api/v1/analytics/revenue?from=&to=.
// Returns the daily revenue series for the given date range,
// defaulting to the last 30 days.
func (h *AnalyticsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -29)

	if raw := query.Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := query.Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}

	if to.Before(from) {
		writeError(w, http.StatusBadRequest, codeValidationError, "to must not be before from")
		return
	}
	if to.Sub(from) > 366*24*time.Hour {
		writeError(w, http.StatusBadRequest, codeValidationError, "Date range must not exceed one year")
		return
	}

	series, err := h.repo.GetRevenueSeries(r.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to load revenue series", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to load revenue series")
		return
	}

	if series == nil {
		series = []*repository.RevenueDay{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
		"days": series,
	})
}
