package portal

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/domain/order"
)

// maxResponseSize caps any portal response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Client opens authenticated sessions against the portal.
// It implements order.Source.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a portal client with the given configuration
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ order.Source = (*Client)(nil)

// Open fetches a fresh public key, logs in and returns a ticket-bearing session
func (c *Client) Open(ctx context.Context) (order.Session, error) {
	return c.Login(ctx)
}

// Login performs the RSA handshake. Every call fetches the key again.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("portal: cookie jar: %w", err)
	}
	hc := *c.httpClient
	hc.Jar = jar

	s := &Session{config: c.config, httpClient: &hc, logger: c.logger}

	pub, err := s.fetchPublicKey(ctx)
	if err != nil {
		return nil, err
	}

	encrypted, err := EncryptPassword(pub, c.config.Password)
	if err != nil {
		return nil, err
	}

	ticket, err := s.login(ctx, encrypted)
	if err != nil {
		return nil, err
	}
	s.ticket = ticket

	c.logger.Info("Logged in to portal", zap.String("username", c.config.Username))
	return s, nil
}

// response is a fully read HTTP response
type response struct {
	status int
	body   []byte
}

// do sends a request with the portal's fixed headers and reads the body.
// Status codes are left to the caller.
func (s *Session) do(ctx context.Context, method, url string, body any, headers map[string]string) (*response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("portal: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("portal: failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", s.config.UserAgent)
	if s.ticket != "" {
		req.Header.Set("Authorization", s.ticket)
		req.Header.Set("Buffalo-Ticket", s.ticket)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrPortalUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPortalUnavailable, err)
	}

	return &response{status: resp.StatusCode, body: data}, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func (s *Session) fetchPublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	resp, err := s.do(ctx, http.MethodGet, s.config.url(PublicKeyPath), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublicKey, err)
	}
	if !isSuccess(resp.status) {
		return nil, fmt.Errorf("%w: HTTP %d", ErrPublicKey, resp.status)
	}
	return ParsePublicKey(strings.TrimSpace(string(resp.body)))
}

func (s *Session) login(ctx context.Context, encryptedPassword string) (string, error) {
	body := loginRequest{Username: s.config.Username, Password: encryptedPassword}
	headers := map[string]string{"Content-Type": "application/json;charset=UTF-8"}

	resp, err := s.do(ctx, http.MethodPost, s.config.url(LoginPath), body, headers)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if !isSuccess(resp.status) {
		return "", fmt.Errorf("%w: HTTP %d", ErrLoginFailed, resp.status)
	}

	var lr loginResponse
	if err := json.Unmarshal(resp.body, &lr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrLoginFailed, err)
	}
	ticket := lr.ticket()
	if ticket == "" {
		return "", ErrMissingTicket
	}
	return ticket, nil
}
