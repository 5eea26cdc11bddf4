package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/common"
)

// Client talks to the home node with the session token. Contact-node calls
// take an explicit models.Destination and carry the contact token instead.
type Client struct {
	t      *transport
	server string
	token  string
}

type Option func(*transport)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(t *transport) { t.httpc = h }
}

// WithTimeout bounds every call; expiry surfaces as a transport failure.
func WithTimeout(d time.Duration) Option {
	return func(t *transport) { t.timeout = d }
}

// WithRateLimit throttles outbound requests, mainly to keep sub-resource
// fetch bursts from flooding a node.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(t *transport) { t.limiter = rate.NewLimiter(r, burst) }
}

// WithInsecure switches to plain http, for tests and local nodes.
func WithInsecure() Option {
	return func(t *transport) { t.scheme = "http" }
}

func New(server, token string, opts ...Option) *Client {
	t := newTransport()
	for _, o := range opts {
		o(t)
	}
	return &Client{t: t, server: server, token: token}
}

func (c *Client) agent() url.Values {
	q := url.Values{}
	q.Set(common.AgentParamName, c.token)
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.t.do(ctx, http.MethodGet, c.t.endpoint(c.server, path, query), nil, out)
}

func (c *Client) put(ctx context.Context, path string, query url.Values, in, out any) error {
	return c.t.do(ctx, http.MethodPut, c.t.endpoint(c.server, path, query), in, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, in, out any) error {
	return c.t.do(ctx, http.MethodPost, c.t.endpoint(c.server, path, query), in, out)
}

func (c *Client) delete(ctx context.Context, path string, query url.Values) error {
	return c.t.do(ctx, http.MethodDelete, c.t.endpoint(c.server, path, query), nil, nil)
}

// Authenticate exchanges account credentials for an app token on the given
// node. The returned access is the opaque session credential used everywhere
// else.
func Authenticate(ctx context.Context, server, handle, password string, opts ...Option) (*models.Access, error) {
	t := newTransport()
	for _, o := range opts {
		o(t)
	}

	rawurl := t.endpoint(server, "/account/apps", nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(handle, password)

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := t.httpc.Do(req)
	if err != nil {
		return nil, common.ErrTransport
	}
	defer resp.Body.Close()
	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	access := &models.Access{Server: server}
	if err := decodeBody(resp, access); err != nil {
		return nil, err
	}
	return access, nil
}
