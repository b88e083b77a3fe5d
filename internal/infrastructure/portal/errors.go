package portal

import "errors"

var (
	// ErrPortalUnavailable wraps transport failures talking to the portal
	ErrPortalUnavailable = errors.New("portal: unavailable")
	// ErrPublicKey is returned when the login public key cannot be fetched or parsed
	ErrPublicKey = errors.New("portal: invalid public key")
	// ErrEncryptPassword is returned when the password cannot be encrypted
	ErrEncryptPassword = errors.New("portal: password encryption failed")
	// ErrLoginFailed is returned when the login request is rejected
	ErrLoginFailed = errors.New("portal: login failed")
	// ErrMissingTicket is returned when a login response carries no ticket
	ErrMissingTicket = errors.New("portal: login response has no ticket")
	// ErrListingFailed is returned when an order listing page cannot be read
	ErrListingFailed = errors.New("portal: order listing failed")
	// ErrDetailFailed is returned when a single order detail cannot be read
	ErrDetailFailed = errors.New("portal: order detail failed")
)
