// Package api is the ZODIC backend: auth sessions, bots, trades, portfolios,
// market snapshot and analytics over a SQLite store.
package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/pkg/kvstore"
	"github.com/zodic/zodic/pkg/logger"
	"github.com/zodic/zodic/pkg/ratelimit"
)

type Config struct {
	DBPath string

	SessionDir      string
	SessionKey      []byte // 32 bytes; nil stores sessions unencrypted
	SessionInMemory bool

	IdentityURL    string
	CORSOrigins    []string
	AdminEmails    []string
	CookieInsecure bool
	AuthRateLimit  int // per client per minute on POST /api/auth/session

	// Now is overridable in tests.
	Now func() time.Time
}

type Server struct {
	cfg      Config
	db       *sql.DB
	sessions *sessionStore
	identity *identityClient
	authRL   *ratelimit.Keyed
	admins   map[string]bool
	log      *logrus.Entry
}

func New(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if cfg.SessionDir == "" && !cfg.SessionInMemory {
		return nil, errors.New("session dir is required")
	}
	if cfg.IdentityURL == "" {
		return nil, errors.New("identity url is required")
	}
	if cfg.AuthRateLimit <= 0 {
		cfg.AuthRateLimit = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // one writer at a time for sqlite
	db.SetMaxIdleConns(1)

	s := &Server{
		cfg:      cfg,
		db:       db,
		identity: newIdentityClient(cfg.IdentityURL),
		admins:   map[string]bool{},
		log:      logger.WithField("component", "api"),
	}
	for _, e := range cfg.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			s.admins[e] = true
		}
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	kv, err := kvstore.Open(kvstore.OpenOptions{
		Path:          cfg.SessionDir,
		InMemory:      cfg.SessionInMemory,
		EncryptionKey: cfg.SessionKey,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	s.sessions = &sessionStore{kv: kv, now: cfg.Now}

	limit := cfg.AuthRateLimit
	s.authRL = ratelimit.NewKeyed(func() *ratelimit.TokenBucket { return ratelimit.PerMinute(limit) }, 10*time.Minute)
	return s, nil
}

func (s *Server) Close() error {
	var firstErr error
	if s.sessions != nil {
		if err := s.sessions.kv.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) Router() http.Handler {
	r := httpx.NewEngine("api")
	r.Use(s.cors())

	r.GET("/healthz", httpx.Wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api")
	api.GET("/health", httpx.Wrap(s.handleHealth))

	// only the handoff exchange is limited; /me is probed on every page load
	auth := api.Group("/auth")
	auth.POST("/session", s.rateLimitAuth(), httpx.Wrap(s.handleSessionCreate))
	auth.GET("/me", httpx.Wrap(s.handleMe))
	auth.POST("/logout", httpx.Wrap(s.handleLogout))

	admin := api.Group("/admin")
	admin.GET("/users", httpx.Wrap(s.handleAdminUsers))
	admin.PUT("/users/:userID/role", httpx.Wrap(s.handleAdminUserRole))

	bots := api.Group("/bots")
	bots.GET("", httpx.Wrap(s.handleBotsList))
	bots.POST("", httpx.Wrap(s.handleBotsCreate))
	bots.PUT("/:botID/toggle", httpx.Wrap(s.handleBotToggle))

	market := api.Group("/market")
	market.GET("/stocks", httpx.Wrap(s.handleMarketStocks))
	market.GET("/stocks/:symbol", httpx.Wrap(s.handleMarketStock))

	api.GET("/portfolio", httpx.Wrap(s.handlePortfolio))
	api.GET("/trades", httpx.Wrap(s.handleTrades))
	api.GET("/analytics/overview", httpx.Wrap(s.handleAnalyticsOverview))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.cfg.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) isAdminEmail(email string) bool {
	return s.admins[strings.ToLower(strings.TrimSpace(email))]
}
