package web

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zodic/zodic/pkg/backend"
)

func unauthorized() error {
	return &backend.APIError{Status: http.StatusUnauthorized, Detail: "Not authenticated"}
}

// fakeBackend is an in-memory Backend keyed by session token.
type fakeBackend struct {
	mu sync.Mutex

	handoffs map[string]string // handoff token -> session token
	users    map[string]*backend.User
	bots     []backend.Bot
	market   backend.MarketSnapshot
	fail     map[string]error // section -> error

	calls     map[string]int
	created   []backend.CreateBotRequest
	toggled   []string
	loggedOut []string
	roles     map[string]string // user id -> role set through SetUserRole
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		handoffs: map[string]string{"h-ana": "tok-ana", "h-root": "tok-root"},
		users: map[string]*backend.User{
			"tok-ana":  {ID: "u-ana", Email: "ana@zodic.test", Name: "Ana", Role: backend.RoleClient, IsActive: true},
			"tok-root": {ID: "u-root", Email: "root@zodic.test", Name: "Root", Role: backend.RoleAdmin, IsActive: true},
		},
		bots: []backend.Bot{{ID: "b-1", UserID: "u-ana", Name: "alpha", Strategy: "momentum", Capital: 5000, RiskPercentage: 2}},
		market: backend.MarketSnapshot{
			"RELIANCE": {Price: 2456.75, Change: 12.30, Volume: 1250000},
			"TCS":      {Price: 3890.20, Change: -15.80, Volume: 890000},
		},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeBackend) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.fail[name]
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) userFor(token string) (*backend.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[token]
	if !ok {
		return nil, unauthorized()
	}
	cp := *u
	return &cp, nil
}

func (f *fakeBackend) CreateSession(ctx context.Context, handoff string) (*backend.User, string, error) {
	_ = f.hit("session")
	f.mu.Lock()
	token, ok := f.handoffs[handoff]
	f.mu.Unlock()
	if !ok {
		return nil, "", unauthorized()
	}
	u, err := f.userFor(token)
	return u, token, err
}

func (f *fakeBackend) Me(ctx context.Context, token string) (*backend.User, error) {
	if err := f.hit("me"); err != nil {
		return nil, err
	}
	return f.userFor(token)
}

func (f *fakeBackend) Logout(ctx context.Context, token string) error {
	_ = f.hit("logout")
	f.mu.Lock()
	f.loggedOut = append(f.loggedOut, token)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Analytics(ctx context.Context, token string) (backend.Analytics, error) {
	if err := f.hit(SectionAnalytics); err != nil {
		return nil, err
	}
	return backend.Analytics{"total_bots": 1, "active_bots": 0}, nil
}

func (f *fakeBackend) Bots(ctx context.Context, token string) ([]backend.Bot, error) {
	if err := f.hit(SectionBots); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Bot(nil), f.bots...), nil
}

func (f *fakeBackend) CreateBot(ctx context.Context, token string, req backend.CreateBotRequest) (*backend.Bot, error) {
	if err := f.hit("create_bot"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return &backend.Bot{ID: "b-new", Name: req.Name, Strategy: req.Strategy}, nil
}

func (f *fakeBackend) ToggleBot(ctx context.Context, token, botID string) (string, error) {
	if err := f.hit("toggle_bot"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled = append(f.toggled, botID)
	return "Bot activated successfully", nil
}

func (f *fakeBackend) Trades(ctx context.Context, token string) ([]backend.Trade, error) {
	if err := f.hit(SectionTrades); err != nil {
		return nil, err
	}
	return []backend.Trade{{ID: "t-1", Symbol: "TCS", Action: backend.ActionBuy, Quantity: 2, Price: 3890.20, ExecutedAt: time.Date(2026, 1, 2, 9, 15, 0, 0, time.UTC), Status: backend.TradeExecuted}}, nil
}

func (f *fakeBackend) Portfolio(ctx context.Context, token string) (*backend.Portfolio, error) {
	if err := f.hit(SectionPortfolio); err != nil {
		return nil, err
	}
	return &backend.Portfolio{
		TotalValue:  12345.5,
		CashBalance: 10000,
		DailyPnL:    -42.25,
		Positions:   []backend.Position{{Symbol: "INFY", Quantity: 3, Price: 1678.45}},
	}, nil
}

func (f *fakeBackend) Market(ctx context.Context) (backend.MarketSnapshot, error) {
	if err := f.hit(SectionMarket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := backend.MarketSnapshot{}
	for k, v := range f.market {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) Users(ctx context.Context, token string) ([]backend.User, error) {
	if err := f.hit(SectionUsers); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []backend.User{}
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeBackend) SetUserRole(ctx context.Context, token, userID, role string) error {
	if err := f.hit("set_role"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[token]; !ok || u.Role != backend.RoleAdmin {
		return &backend.APIError{Status: http.StatusForbidden, Detail: "Admin access required"}
	}
	if f.roles == nil {
		f.roles = map[string]string{}
	}
	f.roles[userID] = role
	return nil
}

const (
	testAuthURL   = "https://auth.example"
	testPublicURL = "https://zodic.example"
	testCookie    = "zodic_session"
)

func newTestWeb(t *testing.T, fb *fakeBackend, mutate ...func(*Config)) (*Server, http.Handler) {
	t.Helper()
	cfg := Config{
		Backend:            fb,
		AuthURL:            testAuthURL,
		PublicURL:          testPublicURL,
		CookieName:         testCookie,
		MarketCacheTTL:     time.Minute,
		LiveMarketInterval: time.Hour,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, s.Router()
}
