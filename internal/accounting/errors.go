package accounting

import "errors"

var (
	// ErrNoIdentity is returned when a facade is requested without a user.
	ErrNoIdentity = errors.New("accounting requires an identity")
	// ErrClosed is returned by a facade after Close.
	ErrClosed = errors.New("accounting facade closed")
)
