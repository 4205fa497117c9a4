// Package backend is the HTTP client for the ZODIC backend API.
//
// Every call takes the caller's session token explicitly; the client itself holds
// no session state and can be shared between requests.
package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	// SessionCookie is the cookie the backend sets on POST /api/auth/session.
	SessionCookie = "session_token"
	// SessionHeader carries the handoff token to POST /api/auth/session.
	SessionHeader = "X-Session-ID"
)

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int           // retries for idempotent reads only
	RetryWait time.Duration // initial wait between retries
	UserAgent string
}

func (o *Options) applyDefaults() {
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryWait <= 0 {
		o.RetryWait = 200 * time.Millisecond
	}
	if o.UserAgent == "" {
		o.UserAgent = "zodic-web"
	}
}

type Client struct {
	read  *resty.Client
	write *resty.Client
}

func NewClient(opts Options) *Client {
	opts.applyDefaults()

	read := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(10 * opts.RetryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode() >= http.StatusInternalServerError
		})

	// mutations are never retried
	write := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{read: read, write: write}
}

func (c *Client) newRequest(ctx context.Context, rc *resty.Client, token string) *resty.Request {
	r := rc.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	if token != "" {
		r.SetCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	return r
}

func (c *Client) get(ctx context.Context, token, path string, out any) error {
	resp, err := c.newRequest(ctx, c.read, token).SetResult(out).Get(path)
	return check(resp, err, http.MethodGet, path)
}

func check(resp *resty.Response, err error, method, path string) error {
	if err != nil {
		return errors.Wrapf(err, "backend %s %s", method, path)
	}
	if !resp.IsSuccess() {
		return parseAPIError(resp)
	}
	return nil
}

// CreateSession exchanges a handoff token for a user and the backend session token.
func (c *Client) CreateSession(ctx context.Context, handoff string) (*User, string, error) {
	handoff = strings.TrimSpace(handoff)
	if handoff == "" {
		return nil, "", errors.New("backend: empty handoff token")
	}
	const path = "/api/auth/session"
	var out SessionResponse
	resp, err := c.newRequest(ctx, c.write, "").
		SetHeader(SessionHeader, handoff).
		SetResult(&out).
		Post(path)
	if err := check(resp, err, http.MethodPost, path); err != nil {
		return nil, "", err
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookie && ck.Value != "" {
			return &out.User, ck.Value, nil
		}
	}
	return nil, "", ErrNoSessionCookie
}

// Me asks the backend which user the session identifies.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.get(ctx, token, "/api/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	const path = "/api/auth/logout"
	resp, err := c.newRequest(ctx, c.write, token).Post(path)
	return check(resp, err, http.MethodPost, path)
}

func (c *Client) Analytics(ctx context.Context, token string) (Analytics, error) {
	out := Analytics{}
	if err := c.get(ctx, token, "/api/analytics/overview", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Bots(ctx context.Context, token string) ([]Bot, error) {
	var out []Bot
	if err := c.get(ctx, token, "/api/bots", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateBot(ctx context.Context, token string, req CreateBotRequest) (*Bot, error) {
	const path = "/api/bots"
	var out Bot
	resp, err := c.newRequest(ctx, c.write, token).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post(path)
	if err := check(resp, err, http.MethodPost, path); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleBot(ctx context.Context, token, botID string) (string, error) {
	path := "/api/bots/" + url.PathEscape(botID) + "/toggle"
	var out MessageResponse
	resp, err := c.newRequest(ctx, c.write, token).SetResult(&out).Put(path)
	if err := check(resp, err, http.MethodPut, path); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) Trades(ctx context.Context, token string) ([]Trade, error) {
	var out []Trade
	if err := c.get(ctx, token, "/api/trades", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Portfolio(ctx context.Context, token string) (*Portfolio, error) {
	var out Portfolio
	if err := c.get(ctx, token, "/api/portfolio", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Market returns the public market snapshot; no session is needed.
func (c *Client) Market(ctx context.Context) (MarketSnapshot, error) {
	out := MarketSnapshot{}
	if err := c.get(ctx, "", "/api/market/stocks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stock(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	out := MarketSnapshot{}
	if err := c.get(ctx, "", "/api/market/stocks/"+url.PathEscape(symbol), &out); err != nil {
		return nil, err
	}
	q, ok := out[symbol]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

// Users lists every user; admin only.
func (c *Client) Users(ctx context.Context, token string) ([]User, error) {
	var out []User
	if err := c.get(ctx, token, "/api/admin/users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetUserRole(ctx context.Context, token, userID, role string) error {
	path := "/api/admin/users/" + url.PathEscape(userID) + "/role"
	resp, err := c.newRequest(ctx, c.write, token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"role": role}).
		Put(path)
	return check(resp, err, http.MethodPut, path)
}

func (c *Client) Health(ctx context.Context) error {
	const path = "/api/health"
	resp, err := c.newRequest(ctx, c.read, "").Get(path)
	return check(resp, err, http.MethodGet, path)
}
