package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zodic/zodic/pkg/backend"
)

func newPortfolio(userID string, now time.Time) backend.Portfolio {
	return backend.Portfolio{
		ID:          uuid.NewString(),
		UserID:      userID,
		CashBalance: backend.DefaultCashBalance,
		Positions:   []backend.Position{},
		UpdatedAt:   now.UTC(),
	}
}

func (s *Server) insertPortfolio(ctx context.Context, p backend.Portfolio) error {
	positions := p.Positions
	if positions == nil {
		positions = []backend.Position{}
	}
	posJSON, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO portfolios (id,user_id,total_value,cash_balance,positions_json,daily_pnl,total_pnl,updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET
  total_value=excluded.total_value,
  cash_balance=excluded.cash_balance,
  positions_json=excluded.positions_json,
  daily_pnl=excluded.daily_pnl,
  total_pnl=excluded.total_pnl,
  updated_at=excluded.updated_at
`, p.ID, p.UserID, p.TotalValue, p.CashBalance, string(posJSON), p.DailyPnL, p.TotalPnL, formatTS(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert portfolio: %w", err)
	}
	return nil
}

func (s *Server) getPortfolio(ctx context.Context, userID string) (*backend.Portfolio, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id,user_id,total_value,cash_balance,positions_json,daily_pnl,total_pnl,updated_at
FROM portfolios WHERE user_id=?
`, userID)
	var p backend.Portfolio
	var posJSON, updatedAt string
	if err := row.Scan(&p.ID, &p.UserID, &p.TotalValue, &p.CashBalance, &posJSON, &p.DailyPnL, &p.TotalPnL, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Positions = []backend.Position{}
	if posJSON != "" {
		if err := json.Unmarshal([]byte(posJSON), &p.Positions); err != nil {
			return nil, fmt.Errorf("decode positions: %w", err)
		}
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &p, nil
}

// getOrCreatePortfolio lazily creates the default portfolio.
func (s *Server) getOrCreatePortfolio(ctx context.Context, userID string) (*backend.Portfolio, error) {
	p, err := s.getPortfolio(ctx, userID)
	if err != nil || p != nil {
		return p, err
	}
	np := newPortfolio(userID, s.cfg.Now())
	if err := s.insertPortfolio(ctx, np); err != nil {
		return nil, err
	}
	return &np, nil
}
