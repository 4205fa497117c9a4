package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zodic/zodic/pkg/backend"
)

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(path, cookie string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: cookie})
	}
	return req
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == testCookie {
			return ck
		}
	}
	return nil
}

func TestPublicPages(t *testing.T) {
	_, h := newTestWeb(t, newFakeBackend())

	t.Run("landing", func(t *testing.T) {
		rec := serve(h, get("/", ""))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `href="/login"`)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	})

	t.Run("login redirects to identity service", func(t *testing.T) {
		rec := serve(h, get("/login", ""))
		require.Equal(t, http.StatusFound, rec.Code)
		want := testAuthURL + "/?redirect=" + url.QueryEscape(testPublicURL+"/dashboard")
		assert.Equal(t, want, rec.Header().Get("Location"))
	})

	t.Run("dashboard without session serves handoff page", func(t *testing.T) {
		rec := serve(h, get("/dashboard", ""))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `action="/auth/session"`)
		assert.Contains(t, body, "location.hash")
	})

	t.Run("unknown path", func(t *testing.T) {
		rec := serve(h, get("/pricing", ""))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Page not found")
	})

	t.Run("healthz", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(h, get("/healthz", "")).Code)
	})
}

func TestSessionHandoff(t *testing.T) {
	t.Run("fragment post", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, postForm("/auth/session", url.Values{"fragment": {"#session_id=h-ana"}}))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
		ck := sessionCookie(t, rec)
		require.NotNil(t, ck)
		assert.Equal(t, "tok-ana", ck.Value)
		assert.True(t, ck.HttpOnly)
		assert.Equal(t, 1, fb.count("session"))
	})

	t.Run("rejected handoff", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, postForm("/auth/session", url.Values{"fragment": {"#session_id=nope"}}))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		assert.Nil(t, sessionCookie(t, rec))
	})

	t.Run("fragment without token", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, postForm("/auth/session", url.Values{"fragment": {"#foo=bar"}}))
		assert.Equal(t, "/", rec.Header().Get("Location"))
		assert.Equal(t, 0, fb.count("session"))
	})

	t.Run("query carrier", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, get("/dashboard?session_id=h-ana", ""))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
		require.NotNil(t, sessionCookie(t, rec))
	})

	t.Run("failed query handoff ignores cookie", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, get("/dashboard?session_id=bogus", "tok-ana"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		assert.Equal(t, 0, fb.count("me"))
	})
}

func TestCookieSession(t *testing.T) {
	t.Run("root redirects signed-in users", func(t *testing.T) {
		_, h := newTestWeb(t, newFakeBackend())
		rec := serve(h, get("/", "tok-ana"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	})

	t.Run("stale cookie is cleared", func(t *testing.T) {
		_, h := newTestWeb(t, newFakeBackend())
		rec := serve(h, get("/", "tok-gone"))
		require.Equal(t, http.StatusOK, rec.Code)
		ck := sessionCookie(t, rec)
		require.NotNil(t, ck)
		assert.Less(t, ck.MaxAge, 0)
	})
}

func TestDashboard(t *testing.T) {
	t.Run("client overview", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, get("/dashboard", "tok-ana"))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Ana")
		assert.Contains(t, body, "Total bots")
		assert.NotContains(t, body, "tab=users")
		assert.NotContains(t, body, "could not be loaded")
		assert.Equal(t, 0, fb.count(SectionUsers))
	})

	t.Run("admin users tab", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, get("/dashboard?tab=users", "tok-root"))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "tab=users")
		assert.Contains(t, body, "ana@zodic.test")
		assert.Equal(t, 1, fb.count(SectionUsers))
	})

	t.Run("client asking for users gets overview", func(t *testing.T) {
		_, h := newTestWeb(t, newFakeBackend())
		rec := serve(h, get("/dashboard?tab=users", "tok-ana"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<h2>Overview</h2>")
	})

	t.Run("market tab", func(t *testing.T) {
		_, h := newTestWeb(t, newFakeBackend())
		rec := serve(h, get("/dashboard?tab=market", "tok-ana"))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "2,456.75")
		assert.Contains(t, body, "-15.80")
		assert.Contains(t, body, "/ws/market")
	})

	t.Run("partial failure shows notice", func(t *testing.T) {
		fb := newFakeBackend()
		fb.fail[SectionBots] = errors.New("dial tcp: connection refused")
		fb.fail[SectionTrades] = &backend.APIError{Status: http.StatusBadGateway}
		_, h := newTestWeb(t, fb)
		rec := serve(h, get("/dashboard?tab=bots", "tok-ana"))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Some data could not be loaded: bots, trades.")
		assert.Contains(t, body, "No bots yet.")
	})

	t.Run("session expiring mid-fetch", func(t *testing.T) {
		fb := newFakeBackend()
		fb.fail[SectionAnalytics] = unauthorized()
		_, h := newTestWeb(t, fb)
		rec := serve(h, get("/dashboard", "tok-ana"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		ck := sessionCookie(t, rec)
		require.NotNil(t, ck)
		assert.Less(t, ck.MaxAge, 0)
	})
}

func TestBotActions(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		form := url.Values{"name": {"beta"}, "strategy": {"breakout"}, "capital": {"2500"}}
		rec := serve(h, withSession(postForm("/dashboard/bots", form), "tok-ana"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/dashboard?tab=bots", rec.Header().Get("Location"))
		require.Len(t, fb.created, 1)
		assert.Equal(t, "beta", fb.created[0].Name)
		require.NotNil(t, fb.created[0].Capital)
		assert.Equal(t, 2500.0, *fb.created[0].Capital)
		assert.Nil(t, fb.created[0].RiskPercentage)
	})

	t.Run("invalid form", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		form := url.Values{"name": {"beta"}, "strategy": {"breakout"}, "capital": {"lots"}}
		rec := serve(h, withSession(postForm("/dashboard/bots", form), "tok-ana"))
		assert.Equal(t, "/dashboard?error=invalid_bot&tab=bots", rec.Header().Get("Location"))
		assert.Empty(t, fb.created)

		rec = serve(h, get("/dashboard?error=invalid_bot&tab=bots", "tok-ana"))
		assert.Contains(t, rec.Body.String(), "non-negative capital")
	})

	t.Run("toggle", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, withSession(postForm("/dashboard/bots/b-1/toggle", nil), "tok-ana"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, []string{"b-1"}, fb.toggled)
	})

	t.Run("toggle with expired session", func(t *testing.T) {
		fb := newFakeBackend()
		fb.fail["toggle_bot"] = unauthorized()
		_, h := newTestWeb(t, fb)
		rec := serve(h, withSession(postForm("/dashboard/bots/b-1/toggle", nil), "tok-ana"))
		assert.Equal(t, "/", rec.Header().Get("Location"))
		require.NotNil(t, sessionCookie(t, rec))
	})

	t.Run("toggle not found", func(t *testing.T) {
		fb := newFakeBackend()
		fb.fail["toggle_bot"] = &backend.APIError{Status: http.StatusNotFound, Detail: "Bot not found"}
		_, h := newTestWeb(t, fb)
		rec := serve(h, withSession(postForm("/dashboard/bots/b-9/toggle", nil), "tok-ana"))
		assert.Equal(t, "/dashboard?error=bot_toggle&tab=bots", rec.Header().Get("Location"))
	})

	t.Run("signed out", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, postForm("/dashboard/bots", url.Values{"name": {"x"}}))
		assert.Equal(t, "/", rec.Header().Get("Location"))
		assert.Equal(t, 0, fb.count("create_bot"))
	})
}

func TestLogout(t *testing.T) {
	fb := newFakeBackend()
	_, h := newTestWeb(t, fb)
	rec := serve(h, withSession(postForm("/logout", nil), "tok-ana"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []string{"tok-ana"}, fb.loggedOut)
	ck := sessionCookie(t, rec)
	require.NotNil(t, ck)
	assert.Less(t, ck.MaxAge, 0)
}

func TestUserRoleAction(t *testing.T) {
	t.Run("admin promotes a client", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, withSession(postForm("/dashboard/users/u-ana/role", url.Values{"role": {"admin"}}), "tok-root"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/dashboard?tab=users", rec.Header().Get("Location"))
		assert.Equal(t, map[string]string{"u-ana": "admin"}, fb.roles)
	})

	t.Run("users tab offers the change", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		body := serve(h, get("/dashboard?tab=users", "tok-root")).Body.String()
		assert.Contains(t, body, `action="/dashboard/users/u-ana/role"`)
		assert.Contains(t, body, "Make admin")
		assert.Contains(t, body, "Make client")
	})

	t.Run("invalid role", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, withSession(postForm("/dashboard/users/u-ana/role", url.Values{"role": {"owner"}}), "tok-root"))
		assert.Equal(t, "/dashboard?error=invalid_role&tab=users", rec.Header().Get("Location"))
		assert.Equal(t, 0, fb.count("set_role"))
	})

	t.Run("client is refused", func(t *testing.T) {
		fb := newFakeBackend()
		_, h := newTestWeb(t, fb)
		rec := serve(h, withSession(postForm("/dashboard/users/u-root/role", url.Values{"role": {"client"}}), "tok-ana"))
		assert.Equal(t, "/dashboard?error=role_update&tab=users", rec.Header().Get("Location"))
		assert.Empty(t, fb.roles)
	})
}
