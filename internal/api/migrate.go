package api

import (
	"context"
	"fmt"
	"time"
)

func (s *Server) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT NOT NULL,
  picture TEXT,
  role TEXT NOT NULL DEFAULT 'client', -- "admin" | "client"
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);`,
		`
CREATE TABLE IF NOT EXISTS bots (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  strategy TEXT NOT NULL,
  capital REAL NOT NULL,
  risk_percentage REAL NOT NULL DEFAULT 2.0,
  is_active INTEGER NOT NULL DEFAULT 0,
  performance_json TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_bots_user ON bots(user_id);`,
		`
CREATE TABLE IF NOT EXISTS trades (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  bot_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  action TEXT NOT NULL,  -- "BUY" | "SELL"
  quantity INTEGER NOT NULL,
  price REAL NOT NULL,
  status TEXT NOT NULL DEFAULT 'EXECUTED',
  executed_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user_time ON trades(user_id, executed_at DESC);`,
		`
CREATE TABLE IF NOT EXISTS portfolios (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
  total_value REAL NOT NULL DEFAULT 0,
  cash_balance REAL NOT NULL DEFAULT 10000,
  positions_json TEXT NOT NULL DEFAULT '[]',
  daily_pnl REAL NOT NULL DEFAULT 0,
  total_pnl REAL NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL
);`,
	}

	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate exec failed: %w", err)
		}
	}
	return nil
}
