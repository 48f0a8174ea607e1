package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roach88/registry/internal/domain"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps a typed error to its HTTP status: VALIDATION 400,
// NOT_FOUND 404, anything else 500.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	var derr *domain.Error
	if !errors.As(err, &derr) {
		derr = domain.NewStorageError("internal error", nil)
	}

	resp := ErrorResponse{Code: string(derr.Code), Detail: derr.Message, Field: derr.Field}
	if status == http.StatusInternalServerError {
		// Storage details stay in the server log.
		resp.Code = string(domain.ErrCodeStorage)
		resp.Detail = "internal error"
		resp.Field = ""
	}
	writeJSON(w, status, resp)
}
