package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Session lifecycle.
	ErrSessionActive  = "E_SESSION_ACTIVE"
	ErrNoSession      = "E_NO_SESSION"
	ErrNoTargetHeight = "E_NO_TARGET_HEIGHT"
	ErrTickOutOfOrder = "E_TICK_OUT_OF_ORDER"
	ErrGridMismatch   = "E_GRID_MISMATCH"

	// Packing/storage.
	ErrNoData   = "E_NO_DATA"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrSessionActive:   {},
	ErrNoSession:       {},
	ErrNoTargetHeight:  {},
	ErrTickOutOfOrder:  {},
	ErrGridMismatch:    {},
	ErrNoData:          {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
