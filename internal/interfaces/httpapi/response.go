package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/udenfc/super11/internal/usecase"
)

const (
	apiVersion  = "1.0"
	errorDomain = "super11"
)

type responseEnvelope struct {
	APIVersion string     `json:"apiVersion"`
	Data       any        `json:"data,omitempty"`
	Error      *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Status  string      `json:"status"`
	Errors  []errorItem `json:"errors,omitempty"`
}

type errorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	_, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(ctx, w, status, responseEnvelope{APIVersion: apiVersion, Data: data})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code, status, reason := classifyError(err)
	writeJSON(ctx, w, code, errorEnvelope(code, status, reason, err.Error()))
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	code := http.StatusInternalServerError
	writeJSON(ctx, w, code, errorEnvelope(code, "INTERNAL", "internalError", "internal server error"))
}

func errorEnvelope(code int, status, reason, msg string) responseEnvelope {
	return responseEnvelope{
		APIVersion: apiVersion,
		Error: &errorBody{
			Code:    code,
			Message: msg,
			Status:  status,
			Errors: []errorItem{
				{Domain: errorDomain, Reason: reason, Message: msg},
			},
		},
	}
}

// classifyError maps usecase sentinels to an HTTP status, the RPC
// style status string, and a camelCase reason.
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_ARGUMENT", "invalidInput"
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "notFound"
	case errors.Is(err, usecase.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized"
	case errors.Is(err, usecase.ErrCompetitionUnavailable),
		errors.Is(err, usecase.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "dependencyUnavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internalError"
	}
}
