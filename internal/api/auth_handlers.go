package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/internal/metrics"
	"github.com/zodic/zodic/pkg/backend"
)

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	handoff := strings.TrimSpace(r.Header.Get(backend.SessionHeader))
	if handoff == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "X-Session-ID header is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	ident, err := s.identity.sessionData(ctx, handoff)
	if errors.Is(err, errInvalidSession) {
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid session ID")
		return
	}
	if err != nil {
		s.log.WithError(err).Warn("identity exchange failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Session creation failed: "+err.Error())
		return
	}

	user, err := s.upsertIdentityUser(ctx, ident)
	if err != nil {
		s.log.WithError(err).Error("user upsert failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Session creation failed: "+err.Error())
		return
	}

	if _, err := s.sessions.create(ident.SessionToken, user.ID); err != nil {
		s.log.WithError(err).Error("session store failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Session creation failed: "+err.Error())
		return
	}
	metrics.SessionsCreated.Add(1)
	s.log.WithField("user_id", user.ID).Info("session created")

	http.SetCookie(w, &http.Cookie{
		Name:     backend.SessionCookie,
		Value:    ident.SessionToken,
		Path:     "/",
		MaxAge:   int(sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   !s.cfg.CookieInsecure,
		SameSite: http.SameSiteNoneMode,
	})
	httpx.WriteJSON(w, http.StatusOK, backend.SessionResponse{User: *user, Message: "Session created successfully"})
}

// upsertIdentityUser finds the user by email or creates it with a fresh portfolio.
// Emails listed as admins are promoted on every sign-in.
func (s *Server) upsertIdentityUser(ctx context.Context, ident *identityUser) (*backend.User, error) {
	email := strings.TrimSpace(ident.Email)
	existing, err := s.getUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if s.isAdminEmail(email) && existing.Role != backend.RoleAdmin {
			if _, err := s.updateUserRole(ctx, existing.ID, backend.RoleAdmin); err != nil {
				return nil, err
			}
			existing.Role = backend.RoleAdmin
		}
		return existing, nil
	}

	now := s.cfg.Now().UTC()
	u := backend.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      ident.Name,
		Picture:   ident.Picture,
		Role:      backend.RoleClient,
		CreatedAt: now,
		IsActive:  true,
	}
	if s.isAdminEmail(email) {
		u.Role = backend.RoleAdmin
	}
	if err := s.insertUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.insertPortfolio(ctx, newPortfolio(u.ID, now)); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	u := s.requireUser(ctx, w, r)
	if u == nil {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(backend.SessionCookie); err == nil {
		if err := s.sessions.delete(ck.Value); err != nil {
			s.log.WithError(err).Warn("session delete failed")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     backend.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.cfg.CookieInsecure,
		SameSite: http.SameSiteNoneMode,
	})
	httpx.WriteJSON(w, http.StatusOK, backend.MessageResponse{Message: "Logged out successfully"})
}
