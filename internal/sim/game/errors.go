package game

import (
	"errors"

	"tycoon.ai/internal/protocol"
)

// Refusals. A refused operation changes nothing and notifies nobody.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLocked            = errors.New("business locked")
	ErrAlreadyUnlocked   = errors.New("business already unlocked")
	ErrAlreadyHired      = errors.New("manager already hired")
	ErrAlreadyWorking    = errors.New("business already working")
	ErrBadRequest        = errors.New("bad request")

	ErrStopped = errors.New("engine stopped")
)

// ErrorCode maps an engine error onto a protocol error code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return protocol.ErrInsufficientFunds
	case errors.Is(err, ErrLocked):
		return protocol.ErrLocked
	case errors.Is(err, ErrAlreadyUnlocked), errors.Is(err, ErrAlreadyHired), errors.Is(err, ErrAlreadyWorking):
		return protocol.ErrConflict
	case errors.Is(err, ErrBadRequest):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}
