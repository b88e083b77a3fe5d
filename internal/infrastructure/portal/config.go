package portal

import (
	"errors"
	"strings"
	"time"
)

// Portal endpoints, relative to Config.BaseURL
const (
	DefaultBaseURL = "https://index.buffaloex.com"

	PublicKeyPath      = "/buffalo/getRsaPublicKey"
	LoginPath          = "/buffalo/login"
	OrderListPath      = "/mobileapi/myorder/orderList"
	OrderDetailPath    = "/mobileapi/myorder/detail/"
	OrderDetailReferer = "/client/orders/order-detail"

	DefaultPageSize  = 15
	DefaultUserAgent = "Mozilla/5.0"
	DefaultTimeout   = 30 * time.Second
)

// Configuration errors
var (
	ErrConfigMissingUsername = errors.New("portal: username is required")
	ErrConfigMissingPassword = errors.New("portal: password is required")
)

// Config holds the portal account and transport settings
type Config struct {
	// BaseURL is the scheme and host every endpoint is resolved against
	BaseURL string
	// Username is the portal login name
	Username string
	// Password is the plain-text password, encrypted per session before login
	Password string
	// PageSize is the listing page size the portal uses
	PageSize int
	// Timeout bounds every HTTP request
	Timeout time.Duration
	// UserAgent is sent with every request
	UserAgent string
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if c.Username == "" {
		return ErrConfigMissingUsername
	}
	if c.Password == "" {
		return ErrConfigMissingPassword
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return nil
}

func (c *Config) url(path string) string {
	return c.BaseURL + path
}
