package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/internal/metrics"
	"github.com/zodic/zodic/pkg/backend"
)

// cors allows the configured origins with credentials. A "*" entry echoes the
// request origin, since credentialed responses cannot carry a literal wildcard.
func (s *Server) cors() gin.HandlerFunc {
	allowAll := false
	allowed := map[string]bool{}
	for _, o := range s.cfg.CORSOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[o] = true
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if c.Request.Method == http.MethodOptions {
				reqHeaders := c.GetHeader("Access-Control-Request-Headers")
				if reqHeaders == "" {
					reqHeaders = "*"
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", reqHeaders)
				h.Set("Access-Control-Max-Age", "600")
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
		}
		c.Next()
	}
}

// rateLimitAuth applies a per-client token bucket to the session exchange.
func (s *Server) rateLimitAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authRL.Allow(c.ClientIP()) {
			metrics.RateLimited.Add(1)
			s.log.WithField("client", c.ClientIP()).Warn("auth rate limit exceeded")
			httpx.WriteError(c.Writer, http.StatusTooManyRequests, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

// sessionToken reads the session cookie, then an Authorization: Bearer header.
func sessionToken(r *http.Request) string {
	if ck, err := r.Cookie(backend.SessionCookie); err == nil && strings.TrimSpace(ck.Value) != "" {
		return strings.TrimSpace(ck.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// currentUser returns nil when the request carries no live session.
func (s *Server) currentUser(ctx context.Context, r *http.Request) (*backend.User, error) {
	sess, err := s.sessions.lookup(sessionToken(r))
	if err != nil || sess == nil {
		return nil, err
	}
	return s.getUser(ctx, sess.UserID)
}

// requireUser writes 401 and returns nil when unauthenticated.
func (s *Server) requireUser(ctx context.Context, w http.ResponseWriter, r *http.Request) *backend.User {
	u, err := s.currentUser(ctx, r)
	if err != nil {
		s.log.WithError(err).Error("session lookup failed")
		httpx.WriteError(w, http.StatusInternalServerError, "session lookup failed")
		return nil
	}
	if u == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return nil
	}
	return u
}

// requireAdmin writes 403 for anyone but an admin, signed in or not.
func (s *Server) requireAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request) *backend.User {
	u, err := s.currentUser(ctx, r)
	if err != nil {
		s.log.WithError(err).Error("session lookup failed")
		httpx.WriteError(w, http.StatusInternalServerError, "session lookup failed")
		return nil
	}
	if !u.IsAdmin() {
		httpx.WriteError(w, http.StatusForbidden, "Admin access required")
		return nil
	}
	return u
}
