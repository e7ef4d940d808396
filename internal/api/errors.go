package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"log-manager/internal/domain"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var compile *domain.CompileError
	var validation *domain.ValidationError
	var notFound *domain.NotFoundError
	var engine *domain.EngineError

	switch {
	case errors.As(err, &compile):
		return http.StatusBadRequest
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &engine):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode returns the machine-readable code for err.
func errorCode(err error) string {
	var compile *domain.CompileError
	var validation *domain.ValidationError
	var notFound *domain.NotFoundError
	var engine *domain.EngineError

	switch {
	case errors.As(err, &compile):
		return string(compile.Code)
	case errors.As(err, &validation):
		return "INVALID_REQUEST"
	case errors.As(err, &notFound):
		return "NOT_FOUND"
	case errors.As(err, &engine):
		return "ENGINE_ERROR"
	default:
		return "INTERNAL"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: errorCode(err)})
}
