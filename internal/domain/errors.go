package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrNodeNotFound          = errors.New("binary node not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
	ErrTreeIntegrity         = errors.New("tree integrity violation")
	ErrAlreadyPropagated     = errors.New("investment already propagated")
	ErrAlreadySettled        = errors.New("user already settled for cycle")
	ErrLedgerWrite           = errors.New("ledger write failed")
	ErrInsufficientBalance   = errors.New("insufficient available balance")
	ErrLegOccupied           = errors.New("placement leg already occupied")
	ErrIdempotencyRequired   = errors.New("idempotency key required")
	ErrIdempotencyConflict   = errors.New("idempotency key reused with different payload")
	ErrUnsupportedEventType  = errors.New("unsupported event type")
	ErrUnsupportedEventClass = errors.New("unsupported event class")
)
