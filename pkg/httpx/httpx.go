package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

// WriteDomainError maps the core error taxonomy to HTTP codes. Specific
// kinds are matched before their parents: RequestNotPending unwraps to
// InvalidState but keeps its own code for callers.
func WriteDomainError(w http.ResponseWriter, err error) {
	var notPending *domain.RequestNotPendingError
	switch {
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicateSignature):
		WriteError(w, http.StatusConflict, "DUPLICATE_SIGNATURE", err.Error(), nil)
	case errors.Is(err, domain.ErrSelfApproval):
		WriteError(w, http.StatusForbidden, "SELF_APPROVAL", err.Error(), nil)
	case errors.Is(err, domain.ErrNotAuthorized):
		WriteError(w, http.StatusForbidden, "NOT_AUTHORIZED", err.Error(), nil)
	case errors.As(err, &notPending):
		WriteError(w, http.StatusConflict, "REQUEST_NOT_PENDING", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidState):
		WriteError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "DB_ERROR", err.Error(), nil)
	}
}
