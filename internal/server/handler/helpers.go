// Package handler implements the HTTP endpoints of the draw service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// writeJSON marshals v and writes it with status. Marshal failures become a
// bare 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false,"code":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// errorBody is the failure envelope every endpoint uses.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// writeError writes a failure envelope whose status and code follow err.
func writeError(w http.ResponseWriter, err error, msg string) {
	status, code := errorStatus(err)
	writeJSON(w, status, errorBody{Success: false, Message: msg, Code: code})
}

// errorStatus maps domain sentinels to an HTTP status and an error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, "permission-denied"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid-argument"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not-found"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "resource-exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline-exceeded"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
