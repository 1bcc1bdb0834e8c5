package plans

import "errors"

var (
	// ErrUnknownTier is returned for plan names with no configured limits.
	ErrUnknownTier = errors.New("unknown plan tier")
	// ErrProviderUnavailable wraps subscription lookup failures.
	ErrProviderUnavailable = errors.New("entitlement provider unavailable")
)
