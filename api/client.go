// Package api is the typed client for the photo service. Every request,
// including login itself, is issued through the Transport interceptor;
// no screen talks to the network directly.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lichtbild/fotoadmin/events"
	"github.com/lichtbild/fotoadmin/internal/util"
)

const defaultTimeout = 30 * time.Second

// Client is the typed photo-service API client.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures the Client.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	timeout time.Duration
	base    http.RoundTripper
}

// WithLogger sets the structured logger used by the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBaseTransport overrides the underlying round tripper the
// interceptor wraps. Tests use this to fake the network.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// New creates a Client whose every request passes through the credential
// interceptor.
func New(baseURL string, creds CredentialSource, bus *events.Bus, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		base: u,
		http: &http.Client{
			Timeout: o.timeout,
			Transport: &Transport{
				Base:   o.base,
				Creds:  creds,
				Bus:    bus,
				Logger: o.logger,
			},
		},
	}, nil
}

// Login exchanges credentials for either a bearer token or a
// second-factor challenge. The password is NFKD-normalized before it is
// sent.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := LoginRequest{Email: strings.TrimSpace(email), Password: util.Normalize(password)}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyTwoFactor redeems a pending challenge plus a one-time code for a
// bearer token.
func (c *Client) VerifyTwoFactor(ctx context.Context, challenge, code string) (*TwoFactorVerifyResponse, error) {
	req := TwoFactorVerifyRequest{Challenge: challenge, Token: code}
	var resp TwoFactorVerifyResponse
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetupTwoFactor provisions a new second-factor secret for the current
// user.
func (c *Client) SetupTwoFactor(ctx context.Context) (*TwoFactorSetupResponse, error) {
	var resp TwoFactorSetupResponse
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/setup", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DisableTwoFactor revokes the current user's second factor. The server
// invalidates the session on success.
func (c *Client) DisableTwoFactor(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/2fa/disable", nil, nil)
}

// Me returns the identity and role of the current session.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) ListPhotos(ctx context.Context) ([]Photo, error) {
	return list[Photo](ctx, c, "/photos")
}

func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	return list[Order](ctx, c, "/orders")
}

func (c *Client) ListShares(ctx context.Context) ([]Share, error) {
	return list[Share](ctx, c, "/shares")
}

// RevokeShare invalidates a share link.
func (c *Client) RevokeShare(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/shares/%d/revoke", id), nil, nil)
}

func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	return list[Location](ctx, c, "/locations")
}

func (c *Client) ListCustomers(ctx context.Context) ([]Customer, error) {
	return list[Customer](ctx, c, "/customers")
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	return list[User](ctx, c, "/users")
}

func (c *Client) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/users/%d", id), update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

func (c *Client) ListExports(ctx context.Context) ([]ExportJob, error) {
	return list[ExportJob](ctx, c, "/exports")
}

func (c *Client) CreateExport(ctx context.Context, req ExportRequest) (*ExportJob, error) {
	var job ExportJob
	if err := c.do(ctx, http.MethodPost, "/exports", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// PublicShare fetches a share by its public token. No authentication is
// required; the bearer header is simply absent when nobody is logged in.
func (c *Client) PublicShare(ctx context.Context, token string) (*PublicShare, error) {
	var share PublicShare
	if err := c.do(ctx, http.MethodGet, "/public/"+url.PathEscape(token), nil, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var items []T
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	var body ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}
