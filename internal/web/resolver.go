package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/zodic/zodic/internal/metrics"
	"github.com/zodic/zodic/pkg/backend"
)

// handoffKey is the fragment/query key the identity service uses on return.
const handoffKey = "session_id"

type Source string

const (
	SourceNone    Source = "none"
	SourceHandoff Source = "handoff"
	SourceCookie  Source = "cookie"
)

// Resolution is the outcome of resolving one request's session.
type Resolution struct {
	User   *backend.User
	Token  string // backend session token; set when User is
	Source Source

	// Expired is set when the stored cookie no longer identifies a user.
	Expired bool
	Err     error
}

// ParseHandoff extracts the session handoff token from a URL fragment.
// It accepts "#session_id=X", "session_id=X" and fragments carrying other keys.
func ParseHandoff(fragment string) (string, bool) {
	fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if fragment == "" {
		return "", false
	}
	// ParseQuery keeps the pairs it could parse even when it returns an error.
	vals, _ := url.ParseQuery(fragment)
	tok := strings.TrimSpace(vals.Get(handoffKey))
	return tok, tok != ""
}

// handoffToken finds a handoff token carried by the request itself: the posted
// fragment or session_id on POST /auth/session, or ?session_id= on any path.
func handoffToken(r *http.Request) string {
	if r.Method == http.MethodPost {
		if tok, ok := ParseHandoff(r.PostFormValue("fragment")); ok {
			return tok
		}
		if tok := strings.TrimSpace(r.PostFormValue(handoffKey)); tok != "" {
			return tok
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(handoffKey))
}

// Resolve works out who is making the request. A handoff token wins over the
// cookie and is exchanged at most once; when the exchange fails the cookie is
// not consulted.
func (s *Server) Resolve(ctx context.Context, r *http.Request) Resolution {
	res := s.resolve(ctx, r)
	metrics.SessionResolved(string(res.Source))
	return res
}

func (s *Server) resolve(ctx context.Context, r *http.Request) Resolution {
	if handoff := handoffToken(r); handoff != "" {
		user, token, err := s.backend.CreateSession(ctx, handoff)
		if err != nil {
			s.log.WithError(err).Warn("session handoff rejected")
			return Resolution{Source: SourceHandoff, Err: err}
		}
		return Resolution{User: user, Token: token, Source: SourceHandoff}
	}

	ck, err := r.Cookie(s.cfg.CookieName)
	if err != nil || strings.TrimSpace(ck.Value) == "" {
		return Resolution{Source: SourceNone}
	}
	token := strings.TrimSpace(ck.Value)
	user, err := s.backend.Me(ctx, token)
	if err != nil {
		if errors.Is(err, backend.ErrNotAuthenticated) {
			return Resolution{Source: SourceCookie, Expired: true}
		}
		s.log.WithError(err).Warn("session probe failed")
		return Resolution{Source: SourceCookie, Err: err}
	}
	return Resolution{User: user, Token: token, Source: SourceCookie}
}

// persist writes the cookie side effects of a resolution.
func (s *Server) persist(w http.ResponseWriter, res Resolution) {
	switch {
	case res.Source == SourceHandoff && res.User != nil:
		s.setSessionCookie(w, res.Token)
	case res.Expired:
		s.clearSessionCookie(w)
	}
}
