package api

import (
	"errors"
	"strings"
	"time"

	"github.com/zodic/zodic/pkg/kvstore"
)

// sessionTTL is the lifetime of a backend session and its cookie.
const sessionTTL = 7 * 24 * time.Hour

const sessionPrefix = "session/"

type session struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// sessionStore keeps sessions in badger under session/<token>. Badger's TTL
// drops them eventually; lookups also enforce ExpiresAt against the clock.
type sessionStore struct {
	kv  *kvstore.Store
	now func() time.Time
}

func (s *sessionStore) create(token, userID string) (session, error) {
	now := s.now().UTC()
	sess := session{UserID: userID, ExpiresAt: now.Add(sessionTTL), CreatedAt: now}
	return sess, s.kv.SetJSON(sessionPrefix+token, sess, sessionTTL)
}

// lookup returns (nil, nil) for unknown or expired tokens. Expired entries are deleted.
func (s *sessionStore) lookup(token string) (*session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	var sess session
	if err := s.kv.GetJSON(sessionPrefix+token, &sess); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if sess.ExpiresAt.Before(s.now()) {
		_ = s.kv.Delete(sessionPrefix + token)
		return nil, nil
	}
	return &sess, nil
}

func (s *sessionStore) delete(token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.kv.Delete(sessionPrefix + token)
}

func (s *sessionStore) count() (int, error) {
	return s.kv.CountPrefix(sessionPrefix)
}

// LiveSessions counts sessions still held by the store.
func (s *Server) LiveSessions() (int, error) {
	return s.sessions.count()
}
