package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/zodic/zodic/pkg/backend"
)

var errInvalidSession = errors.New("identity: invalid session id")

// identityUser is what the identity provider returns for a handoff token.
type identityUser struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Picture      *string `json:"picture"`
	SessionToken string  `json:"session_token"`
}

type identityClient struct {
	http *resty.Client
}

func newIdentityClient(baseURL string) *identityClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	return &identityClient{http: c}
}

// sessionData exchanges a handoff token for the signed-in identity.
func (c *identityClient) sessionData(ctx context.Context, handoff string) (*identityUser, error) {
	var out identityUser
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(backend.SessionHeader, handoff).
		SetResult(&out).
		Get("/auth/v1/env/oauth/session-data")
	if err != nil {
		return nil, errors.Wrap(err, "identity request")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errInvalidSession
	}
	if strings.TrimSpace(out.Email) == "" {
		return nil, errors.New("identity response missing email")
	}
	if strings.TrimSpace(out.SessionToken) == "" {
		return nil, errors.New("identity response missing session_token")
	}
	return &out, nil
}
