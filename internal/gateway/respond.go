package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/security"
	"github.com/flemzord/tabllm/internal/store"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// statusFor maps an error onto an HTTP status and a kind label.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, fault.ErrValidation),
		errors.Is(err, security.ErrBodyTooLarge),
		errors.Is(err, security.ErrJSONTooDeep),
		errors.Is(err, security.ErrInvalidJSON):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, fault.ErrConfig):
		return http.StatusUnprocessableEntity, "config"
	case errors.Is(err, fault.ErrInvocation):
		return http.StatusBadGateway, "invocation"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, security.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limit"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	writeError(w, status, kind, err.Error())
}
