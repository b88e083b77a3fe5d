package pipeline

import "errors"

// Phase failures. Each wraps the underlying cause.
var (
	ErrSessionFailed = errors.New("portal session failed")
	ErrListingFailed = errors.New("order listing failed")
	ErrStoreFailed   = errors.New("order store failed")
)
