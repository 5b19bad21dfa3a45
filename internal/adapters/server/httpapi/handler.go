// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/evanschultz/selftrack/internal/adapters/render"
	"github.com/evanschultz/selftrack/internal/adapters/server/common"
	"github.com/evanschultz/selftrack/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 8 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	reports common.ReportService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter from a report service.
func NewHandler(reports common.ReportService) *Handler {
	return &Handler{reports: reports}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "report service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch {
	case path == "reports":
		switch r.Method {
		case http.MethodPost:
			h.handleAggregate(w, r)
		case http.MethodGet:
			h.handleRangeReport(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case path == "batches":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListBatches(w, r)
		return
	default:
		batchID, ok := resolveBatchReportID(path)
		if !ok {
			writeJSONError(w, http.StatusNotFound, APIError{
				Code:    "not_found",
				Message: "endpoint not found",
			})
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBatchReport(w, r, batchID)
	}
}

// handleAggregate serves POST `/reports`.
func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req common.AggregateRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	report, err := h.reports.AggregatePeriods(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeReport(w, r, report)
}

// handleRangeReport serves GET `/reports?from=...&to=...`.
func (h *Handler) handleRangeReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.RangeReport(r.Context(), common.RangeRequest{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeReport(w, r, report)
}

// handleListBatches serves GET `/batches`.
func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	items, err := h.reports.ListBatches(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batches": items,
	})
}

// handleBatchReport serves GET `/batches/{id}/report`.
func (h *Handler) handleBatchReport(w http.ResponseWriter, r *http.Request, batchID string) {
	report, err := h.reports.BatchReport(r.Context(), batchID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeReport(w, r, report)
}

// resolveBatchReportID parses `/batches/{id}/report` and returns `{id}`.
func resolveBatchReportID(path string) (string, bool) {
	const (
		prefix = "batches/"
		suffix = "/report"
	)
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeReport writes one report as JSON, or as markdown when `format=markdown` is requested.
func writeReport(w http.ResponseWriter, r *http.Request, report domain.FinalReport) {
	format := strings.TrimSpace(r.URL.Query().Get("format"))
	if format == "" {
		writeJSON(w, http.StatusOK, report)
		return
	}
	parsed, err := render.ParseFormat(format)
	if err != nil || parsed != render.FormatMarkdown && parsed != render.FormatJSON {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: fmt.Sprintf("unsupported format %q", format),
			Hint:    "Use format=json or format=markdown.",
		})
		return
	}
	if parsed == render.FormatJSON {
		writeJSON(w, http.StatusOK, report)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, render.Markdown(report))
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		apiErr := APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		}
		var inputErr *domain.InputError
		if errors.As(err, &inputErr) && inputErr.Index >= 0 {
			apiErr.Context = map[string]any{"period_index": inputErr.Index}
		}
		writeJSONError(w, http.StatusBadRequest, apiErr)
	case errors.Is(err, common.ErrRulesUnavailable):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "configuration_error",
			Message: err.Error(),
			Hint:    "Add a default rule for this operating system to the config.",
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
