package web

import (
	"context"
	"sort"
	"sync"

	"github.com/zodic/zodic/internal/metrics"
	"github.com/zodic/zodic/pkg/backend"
	"github.com/zodic/zodic/pkg/syncgroup"
)

// Dashboard sections, one per backend read.
const (
	SectionAnalytics = "analytics"
	SectionBots      = "bots"
	SectionTrades    = "trades"
	SectionPortfolio = "portfolio"
	SectionMarket    = "market"
	SectionUsers     = "users"
)

const marketCacheKey = "stocks"

// Failure records one section that fell back to its empty default.
type Failure struct {
	Section string
	Kind    backend.FailureKind
	Err     error
}

// DashboardData is whatever the batch managed to load. Sections that failed
// keep their zero values: no bots, no trades, zero analytics, empty portfolio.
type DashboardData struct {
	User      *backend.User
	Analytics backend.Analytics
	Bots      []backend.Bot
	Trades    []backend.Trade
	Portfolio backend.Portfolio
	Market    backend.MarketSnapshot
	Users     []backend.User

	Failures []Failure
}

// Expired reports whether the backend rejected the session for any section.
func (d *DashboardData) Expired() bool {
	for _, f := range d.Failures {
		if f.Kind == backend.FailureUnauthenticated {
			return true
		}
	}
	return false
}

// FailedSections lists failed sections in a stable order.
func (d *DashboardData) FailedSections() []string {
	out := make([]string, 0, len(d.Failures))
	for _, f := range d.Failures {
		out = append(out, f.Section)
	}
	sort.Strings(out)
	return out
}

// Fetch loads every dashboard section in parallel. The admin user list is only
// requested for admins.
func (s *Server) Fetch(ctx context.Context, token string, user *backend.User) *DashboardData {
	d := &DashboardData{
		User:      user,
		Analytics: backend.Analytics{},
		Bots:      []backend.Bot{},
		Trades:    []backend.Trade{},
		Portfolio: backend.Portfolio{Positions: []backend.Position{}},
		Market:    backend.MarketSnapshot{},
		Users:     []backend.User{},
	}

	var mu sync.Mutex
	fail := func(section string, err error) {
		kind := backend.Classify(err)
		metrics.BackendFailure(section, string(kind))
		s.log.WithError(err).WithField("section", section).WithField("kind", kind).Warn("dashboard section unavailable")
		mu.Lock()
		d.Failures = append(d.Failures, Failure{Section: section, Kind: kind, Err: err})
		mu.Unlock()
	}

	g := syncgroup.NewSyncGroup()
	g.Add(func() {
		a, err := s.backend.Analytics(ctx, token)
		if err != nil {
			fail(SectionAnalytics, err)
			return
		}
		d.Analytics = a
	})
	g.Add(func() {
		b, err := s.backend.Bots(ctx, token)
		if err != nil {
			fail(SectionBots, err)
			return
		}
		if b != nil {
			d.Bots = b
		}
	})
	g.Add(func() {
		t, err := s.backend.Trades(ctx, token)
		if err != nil {
			fail(SectionTrades, err)
			return
		}
		if t != nil {
			d.Trades = t
		}
	})
	g.Add(func() {
		p, err := s.backend.Portfolio(ctx, token)
		if err != nil {
			fail(SectionPortfolio, err)
			return
		}
		d.Portfolio = *p
	})
	g.Add(func() {
		m, err := s.market(ctx)
		if err != nil {
			fail(SectionMarket, err)
			return
		}
		d.Market = m
	})
	if user.IsAdmin() {
		g.Add(func() {
			u, err := s.backend.Users(ctx, token)
			if err != nil {
				fail(SectionUsers, err)
				return
			}
			if u != nil {
				d.Users = u
			}
		})
	}
	g.RunAndWait()
	return d
}

// market serves the public snapshot from the in-process cache.
func (s *Server) market(ctx context.Context) (backend.MarketSnapshot, error) {
	return s.marketCache.GetOrLoad(ctx, marketCacheKey, s.backend.Market)
}
