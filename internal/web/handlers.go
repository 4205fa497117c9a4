package web

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/pkg/backend"
)

type landingPage struct {
	LoginURL string
}

type dashboardPage struct {
	*DashboardData
	Tabs   []string
	Tab    string
	Failed []string
	Flash  string
}

// flashes maps the ?error= codes set by the bot actions to messages.
var flashes = map[string]string{
	"invalid_bot":  "Name, strategy and a non-negative capital are required.",
	"bot_create":   "The bot could not be created. Try again.",
	"bot_toggle":   "The bot could not be toggled. Try again.",
	"invalid_role": "Role must be admin or client.",
	"role_update":  "The role could not be changed. Try again.",
}

// handlePage serves the three routed views: /, /login and /dashboard.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	path := r.URL.Path
	var res Resolution
	if path != PathLogin {
		res = s.Resolve(ctx, r)
		s.persist(w, res)
	}

	if res.Source == SourceHandoff {
		// never leave the one-shot token in the address bar
		if res.User == nil {
			http.Redirect(w, r, PathRoot, http.StatusSeeOther)
		} else {
			http.Redirect(w, r, PathDashboard, http.StatusSeeOther)
		}
		return
	}

	dec := Select(path, res.User)
	if dec.Redirect != "" {
		http.Redirect(w, r, dec.Redirect, http.StatusSeeOther)
		return
	}
	switch dec.View {
	case ViewAuthRedirect:
		http.Redirect(w, r, s.loginURL(), http.StatusFound)
	case ViewLanding:
		s.render(w, http.StatusOK, "landing.html", landingPage{LoginURL: PathLogin})
	case ViewHandoff:
		s.render(w, http.StatusOK, "handoff.html", nil)
	case ViewDashboard:
		s.serveDashboard(ctx, w, r, res)
	default:
		s.handleNotFound(w, r)
	}
}

func (s *Server) serveDashboard(ctx context.Context, w http.ResponseWriter, r *http.Request, res Resolution) {
	data := s.Fetch(ctx, res.Token, res.User)
	if data.Expired() {
		s.log.WithField("user_id", res.User.ID).Info("session expired mid-fetch")
		s.clearSessionCookie(w)
		http.Redirect(w, r, PathRoot, http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "dashboard.html", dashboardPage{
		DashboardData: data,
		Tabs:          Tabs(res.User),
		Tab:           ActiveTab(res.User, r.URL.Query().Get("tab")),
		Failed:        data.FailedSections(),
		Flash:         flashes[r.URL.Query().Get("error")],
	})
}

// handleSessionHandoff receives the fragment posted by the handoff page.
func (s *Server) handleSessionHandoff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res := s.Resolve(ctx, r)
	if res.Source != SourceHandoff || res.User == nil {
		http.Redirect(w, r, PathRoot, http.StatusSeeOther)
		return
	}
	s.persist(w, res)
	s.log.WithField("user_id", res.User.ID).Info("signed in")
	http.Redirect(w, r, PathDashboard, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if token := s.cookieToken(r); token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.log.WithError(err).Warn("backend logout failed")
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, PathRoot, http.StatusSeeOther)
}

func (s *Server) handleBotCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	token := s.cookieToken(r)
	if token == "" {
		http.Redirect(w, r, PathRoot, http.StatusSeeOther)
		return
	}
	req, ok := parseBotForm(r)
	if !ok {
		s.redirectTab(w, r, TabBots, "invalid_bot")
		return
	}
	bot, err := s.backend.CreateBot(ctx, token, req)
	if err != nil {
		s.afterActionError(w, r, err, TabBots, "bot_create")
		return
	}
	s.log.WithField("bot_id", bot.ID).Info("bot created")
	s.redirectTab(w, r, TabBots, "")
}

func (s *Server) handleBotToggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	token := s.cookieToken(r)
	if token == "" {
		http.Redirect(w, r, PathRoot, http.StatusSeeOther)
		return
	}
	botID := httpx.PathParam(r, "botID")
	msg, err := s.backend.ToggleBot(ctx, token, botID)
	if err != nil {
		s.afterActionError(w, r, err, TabBots, "bot_toggle")
		return
	}
	s.log.WithField("bot_id", botID).Info(msg)
	s.redirectTab(w, r, TabBots, "")
}

// handleUserRole lets an admin change a user's role from the users tab.
func (s *Server) handleUserRole(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	token := s.cookieToken(r)
	if token == "" {
		http.Redirect(w, r, PathRoot, http.StatusSeeOther)
		return
	}
	role := strings.TrimSpace(r.PostFormValue("role"))
	if role != backend.RoleAdmin && role != backend.RoleClient {
		s.redirectTab(w, r, TabUsers, "invalid_role")
		return
	}
	userID := httpx.PathParam(r, "userID")
	if err := s.backend.SetUserRole(ctx, token, userID, role); err != nil {
		s.afterActionError(w, r, err, TabUsers, "role_update")
		return
	}
	s.log.WithField("user_id", userID).WithField("role", role).Info("user role updated")
	s.redirectTab(w, r, TabUsers, "")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusNotFound, "not_found.html", nil)
}

// afterActionError sends expired sessions home and everything else back to tab.
func (s *Server) afterActionError(w http.ResponseWriter, r *http.Request, err error, tab, code string) {
	if errors.Is(err, backend.ErrNotAuthenticated) {
		s.clearSessionCookie(w)
		http.Redirect(w, r, PathRoot, http.StatusSeeOther)
		return
	}
	s.log.WithError(err).Warn(code)
	s.redirectTab(w, r, tab, code)
}

func (s *Server) redirectTab(w http.ResponseWriter, r *http.Request, tab, errCode string) {
	q := url.Values{"tab": {tab}}
	if errCode != "" {
		q.Set("error", errCode)
	}
	http.Redirect(w, r, PathDashboard+"?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) cookieToken(r *http.Request) string {
	ck, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(ck.Value)
}

// parseBotForm reads name, strategy, capital and the optional risk_percentage.
func parseBotForm(r *http.Request) (backend.CreateBotRequest, bool) {
	req := backend.CreateBotRequest{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Strategy: strings.TrimSpace(r.PostFormValue("strategy")),
	}
	if req.Name == "" || req.Strategy == "" {
		return req, false
	}
	capital, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("capital")), 64)
	if err != nil || capital < 0 {
		return req, false
	}
	req.Capital = &capital
	if raw := strings.TrimSpace(r.PostFormValue("risk_percentage")); raw != "" {
		risk, err := strconv.ParseFloat(raw, 64)
		if err != nil || risk < 0 || risk > 100 {
			return req, false
		}
		req.RiskPercentage = &risk
	}
	return req, true
}
