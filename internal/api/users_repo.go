package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zodic/zodic/pkg/backend"
)

const userColumns = `id,email,name,picture,role,is_active,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*backend.User, error) {
	var u backend.User
	var picture sql.NullString
	var active int
	var createdAt string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &picture, &u.Role, &active, &createdAt); err != nil {
		return nil, err
	}
	if picture.Valid {
		v := picture.String
		u.Picture = &v
	}
	u.IsActive = active != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &u, nil
}

func (s *Server) insertUser(ctx context.Context, u backend.User) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?,?,?,?,?,?,?)
`, u.ID, u.Email, u.Name, u.Picture, u.Role, boolInt(u.IsActive), formatTS(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Server) getUser(ctx context.Context, id string) (*backend.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *Server) getUserByEmail(ctx context.Context, email string) (*backend.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *Server) listUsers(ctx context.Context) ([]backend.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []backend.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// updateUserRole reports whether a user with that id existed.
func (s *Server) updateUserRole(ctx context.Context, id, role string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role=? WHERE id=?`, role, id)
	if err != nil {
		return false, fmt.Errorf("update user role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Server) countUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// tsLayout is fixed-width so TEXT columns sort chronologically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
