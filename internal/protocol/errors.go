package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Engine action layer.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrNotFound          = "E_NOT_FOUND"
	ErrInvalidAmount     = "E_INVALID_AMOUNT"
	ErrIneligible        = "E_INELIGIBLE"
	ErrInsufficientFunds = "E_INSUFFICIENT_FUNDS"
	ErrCapacityExceeded  = "E_CAPACITY_EXCEEDED"
	ErrRateLimit         = "E_RATE_LIMIT"
	ErrStale             = "E_STALE"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrBadRequest:        {},
	ErrNotFound:          {},
	ErrInvalidAmount:     {},
	ErrIneligible:        {},
	ErrInsufficientFunds: {},
	ErrCapacityExceeded:  {},
	ErrRateLimit:         {},
	ErrStale:             {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
