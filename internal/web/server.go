// Package web serves the ZODIC site: landing page, the sign-in handshake with
// the external identity service, and the client dashboard. All data comes
// from the backend API; this package owns no records.
package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/pkg/backend"
	"github.com/zodic/zodic/pkg/cache"
	"github.com/zodic/zodic/pkg/logger"
)

// Backend is the subset of the backend API the site needs. *backend.Client implements it.
type Backend interface {
	CreateSession(ctx context.Context, handoff string) (*backend.User, string, error)
	Me(ctx context.Context, token string) (*backend.User, error)
	Logout(ctx context.Context, token string) error
	Analytics(ctx context.Context, token string) (backend.Analytics, error)
	Bots(ctx context.Context, token string) ([]backend.Bot, error)
	CreateBot(ctx context.Context, token string, req backend.CreateBotRequest) (*backend.Bot, error)
	ToggleBot(ctx context.Context, token, botID string) (string, error)
	Trades(ctx context.Context, token string) ([]backend.Trade, error)
	Portfolio(ctx context.Context, token string) (*backend.Portfolio, error)
	Market(ctx context.Context) (backend.MarketSnapshot, error)
	Users(ctx context.Context, token string) ([]backend.User, error)
	SetUserRole(ctx context.Context, token, userID, role string) error
}

var _ Backend = (*backend.Client)(nil)

type Config struct {
	Backend Backend

	PublicURL    string // where the identity service sends users back to
	AuthURL      string
	CookieName   string
	CookieSecure bool

	MarketCacheTTL     time.Duration
	LiveMarketInterval time.Duration
	RequestTimeout     time.Duration
}

type Server struct {
	cfg         Config
	backend     Backend
	marketCache *cache.InMemoryCache[string, backend.MarketSnapshot]
	live        *liveHub
	views       *template.Template
	log         *logrus.Entry
}

func New(cfg Config) (*Server, error) {
	if cfg.Backend == nil {
		return nil, errors.New("backend client is required")
	}
	if cfg.AuthURL == "" || cfg.PublicURL == "" {
		return nil, errors.New("auth url and public url are required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "zodic_session"
	}
	if cfg.MarketCacheTTL <= 0 {
		cfg.MarketCacheTTL = 15 * time.Second
	}
	if cfg.LiveMarketInterval <= 0 {
		cfg.LiveMarketInterval = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")

	views, err := parseViews()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:         cfg,
		backend:     cfg.Backend,
		marketCache: cache.NewInMemoryCache[string, backend.MarketSnapshot](cfg.MarketCacheTTL),
		views:       views,
		log:         logger.WithField("component", "web"),
	}
	s.live = newLiveHub(s.market, cfg.LiveMarketInterval, s.log.WithField("sub", "live"))
	return s, nil
}

// Run drives the live market push until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.live.run(ctx)
}

func (s *Server) Close() error {
	s.live.closeAll()
	s.marketCache.Close()
	return nil
}

func (s *Server) Router() http.Handler {
	r := httpx.NewEngine("web")

	r.GET("/healthz", httpx.Wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	r.GET(PathRoot, httpx.Wrap(s.handlePage))
	r.GET(PathLogin, httpx.Wrap(s.handlePage))
	r.GET(PathDashboard, httpx.Wrap(s.handlePage))

	r.POST("/auth/session", httpx.Wrap(s.handleSessionHandoff))
	r.POST("/logout", httpx.Wrap(s.handleLogout))

	dash := r.Group(PathDashboard)
	dash.POST("/bots", httpx.Wrap(s.handleBotCreate))
	dash.POST("/bots/:botID/toggle", httpx.Wrap(s.handleBotToggle))
	dash.POST("/users/:userID/role", httpx.Wrap(s.handleUserRole))

	r.GET("/ws/market", httpx.Wrap(s.live.serveWS))

	r.NoRoute(httpx.Wrap(s.handleNotFound))
	return r
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// loginURL is the external sign-in page with the return address.
func (s *Server) loginURL() string {
	return s.cfg.AuthURL + "/?redirect=" + url.QueryEscape(s.cfg.PublicURL+PathDashboard)
}
