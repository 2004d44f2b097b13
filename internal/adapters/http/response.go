package http

import (
	"encoding/json"
	"net/http"

	"github.com/mayanksahu17/binary-system-sub003/internal/contracts"
	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, contracts.SuccessResponse{Status: "success", Message: message, Data: data})
}
func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, contracts.ErrorResponse{Status: "error", Error: contracts.ErrorPayload{Code: code, Message: message, RequestID: requestID}})
}
func mapDomainError(err error) (int, string) {
	switch err {
	case nil:
		return http.StatusOK, ""
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case domain.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case domain.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case domain.ErrNodeNotFound:
		return http.StatusNotFound, "node_not_found"
	case domain.ErrInvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case domain.ErrIdempotencyRequired:
		return http.StatusBadRequest, "idempotency_key_required"
	case domain.ErrIdempotencyConflict, domain.ErrConflict:
		return http.StatusConflict, "conflict"
	case domain.ErrLegOccupied:
		return http.StatusConflict, "leg_occupied"
	case domain.ErrAlreadyPropagated:
		return http.StatusConflict, "already_propagated"
	case domain.ErrAlreadySettled:
		return http.StatusConflict, "already_settled"
	case domain.ErrInsufficientBalance:
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case domain.ErrTreeIntegrity:
		return http.StatusUnprocessableEntity, "tree_integrity"
	case domain.ErrLedgerWrite:
		return http.StatusInternalServerError, "ledger_write_failed"
	case domain.ErrUnsupportedEventType:
		return http.StatusBadRequest, "unsupported_event"
	case domain.ErrUnsupportedEventClass:
		return http.StatusBadRequest, "invalid_event_envelope"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
