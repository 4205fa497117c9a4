package backend

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role values carried on User.Role.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Trade actions and statuses.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"

	TradePending  = "PENDING"
	TradeExecuted = "EXECUTED"
	TradeFailed   = "FAILED"
)

// DefaultRiskPercentage is applied when a bot is created without risk_percentage.
const DefaultRiskPercentage = 2.0

// DefaultCashBalance is the starting cash of a freshly created portfolio.
const DefaultCashBalance = 10000.0

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   *string   `json:"picture"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Bot struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Name           string         `json:"name"`
	Strategy       string         `json:"strategy"`
	Capital        float64        `json:"capital"`
	RiskPercentage float64        `json:"risk_percentage"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	Performance    map[string]any `json:"performance"`
}

// CreateBotRequest is the body of POST /api/bots.
type CreateBotRequest struct {
	Name           string   `json:"name"`
	Strategy       string   `json:"strategy"`
	Capital        *float64 `json:"capital"`
	RiskPercentage *float64 `json:"risk_percentage,omitempty"`
}

type Trade struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	BotID      string    `json:"bot_id"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	ExecutedAt time.Time `json:"executed_at"`
	Status     string    `json:"status"`
}

// Notional is quantity * price, rounded to 2 places.
func (t Trade) Notional() decimal.Decimal {
	return decimal.NewFromInt(int64(t.Quantity)).Mul(decimal.NewFromFloat(t.Price)).Round(2)
}

type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// MarketValue is quantity * price, rounded to 2 places.
func (p Position) MarketValue() decimal.Decimal {
	return decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(p.Price)).Round(2)
}

type Portfolio struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TotalValue  float64    `json:"total_value"`
	CashBalance float64    `json:"cash_balance"`
	Positions   []Position `json:"positions"`
	DailyPnL    float64    `json:"daily_pnl"`
	TotalPnL    float64    `json:"total_pnl"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Quote struct {
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
	Volume int64   `json:"volume,omitempty"`
}

// ChangePercent is the change relative to the previous price (price - change).
func (q Quote) ChangePercent() decimal.Decimal {
	prev := decimal.NewFromFloat(q.Price).Sub(decimal.NewFromFloat(q.Change))
	if prev.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(q.Change).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
}

// MarketSnapshot maps an upper-case symbol to its quote.
type MarketSnapshot map[string]Quote

// Analytics maps a metric name to its value.
type Analytics map[string]float64

// SessionResponse is the body of POST /api/auth/session.
type SessionResponse struct {
	User    User   `json:"user"`
	Message string `json:"message"`
}

// MessageResponse is returned by mutation endpoints that carry no record.
type MessageResponse struct {
	Message string `json:"message"`
}
