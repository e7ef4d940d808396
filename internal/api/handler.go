// Package api serves the log manager's HTTP interface: query submission,
// execution status and cancellation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"log-manager/internal/domain"
	"log-manager/internal/filter"
	"log-manager/internal/middleware"
	"log-manager/internal/service/query"
)

const maxBodyBytes = 1 << 20

// QueryService is the query surface the handler depends on.
type QueryService interface {
	Submit(ctx context.Context, req query.SubmitRequest) (*query.SubmitResponse, error)
	Status(ctx context.Context, executionID string) (domain.QueryExecution, error)
	Cancel(ctx context.Context, executionID string) (domain.QueryExecution, error)
}

// ExecutionResponse wraps an execution snapshot.
type ExecutionResponse struct {
	Execution domain.QueryExecution `json:"execution"`
}

// Handler implements the HTTP endpoints.
type Handler struct {
	queries QueryService
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(queries QueryService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{queries: queries, logger: logger}
}

// SubmitQuery handles POST /api/query. The body is either JSON
// ({"filter":[...]} or {"query":"<filter document>"}) or a form with a
// query field, plus optional table and timezone.
func (h *Handler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.queries.Submit(r.Context(), req)
	if err != nil {
		h.logError(r, "submit query failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetExecution handles GET /api/query-executions/{id}.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, chi.URLParam(r, "id"))
}

// GetExecutionLegacy handles GET /api/queryExecution?queryExecutionId=.
func (h *Handler) GetExecutionLegacy(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, r.URL.Query().Get("queryExecutionId"))
}

// CancelExecution handles POST /api/query-executions/{id}/cancel.
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, chi.URLParam(r, "id"))
}

// CancelExecutionLegacy handles POST /api/cancelQuery with the id in a JSON
// or form body.
func (h *Handler) CancelExecutionLegacy(w http.ResponseWriter, r *http.Request) {
	id, err := decodeExecutionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cancel(w, r, id)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, domain.ErrValidation("missing queryExecutionId"))
		return
	}
	exec, err := h.queries.Status(r.Context(), id)
	if err != nil {
		h.logError(r, "query status failed", err, "execution_id", id)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExecutionResponse{Execution: exec})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, domain.ErrValidation("missing queryExecutionId"))
		return
	}
	exec, err := h.queries.Cancel(r.Context(), id)
	if err != nil {
		h.logError(r, "cancel query failed", err, "execution_id", id)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExecutionResponse{Execution: exec})
}

func (h *Handler) logError(r *http.Request, msg string, err error, args ...any) {
	level := slog.LevelWarn
	if httpStatusFromDomainError(err) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	args = append(args, "request_id", middleware.RequestIDFromContext(r.Context()), "error", err)
	h.logger.Log(r.Context(), level, msg, args...)
}

type submitBody struct {
	Filter   json.RawMessage `json:"filter"`
	Query    string          `json:"query"`
	Table    string          `json:"table"`
	Timezone string          `json:"timezone"`
}

func decodeSubmit(r *http.Request) (query.SubmitRequest, error) {
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return query.SubmitRequest{}, domain.ErrMalformedInput("invalid form body: %s", err.Error())
		}
		raw, err := filter.UnmarshalFilter([]byte(r.PostForm.Get("query")))
		if err != nil {
			return query.SubmitRequest{}, err
		}
		return query.SubmitRequest{
			Filter:   raw,
			Table:    r.PostForm.Get("table"),
			Timezone: r.PostForm.Get("timezone"),
		}, nil
	}

	var body submitBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return query.SubmitRequest{}, domain.ErrMalformedInput("missing query filter section")
		}
		return query.SubmitRequest{}, domain.ErrMalformedInput("invalid request body: %s", err.Error())
	}

	req := query.SubmitRequest{Table: body.Table, Timezone: body.Timezone}
	switch {
	case body.Query != "":
		raw, err := filter.UnmarshalFilter([]byte(body.Query))
		if err != nil {
			return query.SubmitRequest{}, err
		}
		req.Filter = raw
	case len(body.Filter) > 0 && string(body.Filter) != "null":
		if err := json.Unmarshal(body.Filter, &req.Filter); err != nil {
			return query.SubmitRequest{}, domain.ErrMalformedInput("invalid filter list: %s", err.Error())
		}
	}
	return req, nil
}

func decodeExecutionID(r *http.Request) (string, error) {
	if id := r.URL.Query().Get("queryExecutionId"); id != "" {
		return id, nil
	}
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return "", domain.ErrValidation("invalid form body: %s", err.Error())
		}
		return r.PostForm.Get("queryExecutionId"), nil
	}
	var body struct {
		QueryExecutionID string `json:"queryExecutionId"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return "", domain.ErrValidation("invalid request body: %s", err.Error())
	}
	return body.QueryExecutionID, nil
}

func isForm(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/x-www-form-urlencoded"
}
