package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zodic/zodic/pkg/backend"
)

const botColumns = `id,user_id,name,strategy,capital,risk_percentage,is_active,performance_json,created_at`

func scanBot(row rowScanner) (*backend.Bot, error) {
	var b backend.Bot
	var active int
	var perf, createdAt string
	if err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Strategy, &b.Capital, &b.RiskPercentage, &active, &perf, &createdAt); err != nil {
		return nil, err
	}
	b.IsActive = active != 0
	b.Performance = map[string]any{}
	if perf != "" {
		if err := json.Unmarshal([]byte(perf), &b.Performance); err != nil {
			return nil, fmt.Errorf("decode bot %s performance: %w", b.ID, err)
		}
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &b, nil
}

func (s *Server) insertBot(ctx context.Context, b backend.Bot) error {
	perf := b.Performance
	if perf == nil {
		perf = map[string]any{}
	}
	perfJSON, err := json.Marshal(perf)
	if err != nil {
		return fmt.Errorf("encode bot performance: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO bots (`+botColumns+`)
VALUES (?,?,?,?,?,?,?,?,?)
`, b.ID, b.UserID, b.Name, b.Strategy, b.Capital, b.RiskPercentage, boolInt(b.IsActive), string(perfJSON), formatTS(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

// getUserBot only finds bots owned by userID.
func (s *Server) getUserBot(ctx context.Context, userID, botID string) (*backend.Bot, error) {
	b, err := scanBot(s.db.QueryRowContext(ctx, `SELECT `+botColumns+` FROM bots WHERE id=? AND user_id=?`, botID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (s *Server) listUserBots(ctx context.Context, userID string) ([]backend.Bot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+botColumns+` FROM bots WHERE user_id=? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []backend.Bot{}
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Server) setBotActive(ctx context.Context, botID string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE bots SET is_active=? WHERE id=?`, boolInt(active), botID)
	if err != nil {
		return fmt.Errorf("update bot active: %w", err)
	}
	return nil
}

// countBots counts bots of userID, or of everyone when userID is empty.
func (s *Server) countBots(ctx context.Context, userID string, activeOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM bots WHERE 1=1`
	var args []any
	if userID != "" {
		q += ` AND user_id=?`
		args = append(args, userID)
	}
	if activeOnly {
		q += ` AND is_active=1`
	}
	var n int
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}
