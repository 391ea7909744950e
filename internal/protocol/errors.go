package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrRateLimit       = "E_RATE_LIMIT"

	// Rule/action layer.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrNotFound          = "E_NOT_FOUND"
	ErrInsufficientFunds = "E_INSUFFICIENT_FUNDS"
	ErrLocked            = "E_LOCKED"
	ErrConflict          = "E_CONFLICT"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrRateLimit:         {},
	ErrBadRequest:        {},
	ErrNotFound:          {},
	ErrInsufficientFunds: {},
	ErrLocked:            {},
	ErrConflict:          {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
