package api

import (
	"context"
	"fmt"
	"time"

	"github.com/zodic/zodic/pkg/backend"
)

// maxTradeHistory caps GET /api/trades.
const maxTradeHistory = 100

// listUserTrades returns the newest trades first.
func (s *Server) listUserTrades(ctx context.Context, userID string, limit int) ([]backend.Trade, error) {
	if limit <= 0 || limit > maxTradeHistory {
		limit = maxTradeHistory
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id,user_id,bot_id,symbol,action,quantity,price,status,executed_at
FROM trades
WHERE user_id=?
ORDER BY executed_at DESC
LIMIT ?
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	out := []backend.Trade{}
	for rows.Next() {
		var t backend.Trade
		var executedAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.BotID, &t.Symbol, &t.Action, &t.Quantity, &t.Price, &t.Status, &executedAt); err != nil {
			return nil, err
		}
		t.ExecutedAt, _ = time.Parse(time.RFC3339Nano, executedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// countTrades counts trades of userID, or of everyone when userID is empty.
func (s *Server) countTrades(ctx context.Context, userID string) (int, error) {
	q := `SELECT COUNT(*) FROM trades`
	var args []any
	if userID != "" {
		q += ` WHERE user_id=?`
		args = append(args, userID)
	}
	var n int
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}
