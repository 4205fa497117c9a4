package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zodic/zodic/pkg/backend"
)

func TestModelAppliesSnapshots(t *testing.T) {
	m := model{token: "tok", interval: time.Second}

	next, _ := m.Update(snapshotMsg{
		market: backend.MarketSnapshot{
			"TCS":      {Price: 3890.20, Change: -15.80, Volume: 890000},
			"RELIANCE": {Price: 2456.75, Change: 12.30, Volume: 1250000},
		},
		bots: []backend.Bot{{Name: "alpha", Strategy: "momentum", Capital: 5000, RiskPercentage: 2, IsActive: true}},
		at:   time.Date(2026, 1, 2, 9, 15, 0, 0, time.UTC),
	})
	m = next.(model)
	view := m.View()
	assert.Contains(t, view, "RELIANCE")
	assert.Contains(t, view, "3890.20")
	assert.Contains(t, view, "alpha")
	assert.Less(t, strings.Index(view, "RELIANCE"), strings.Index(view, "TCS"), "symbols are sorted")

	// a failed refresh keeps the last good data
	next, _ = m.Update(snapshotMsg{marketErr: errors.New("connection refused"), botsErr: errors.New("connection refused"), at: time.Now()})
	m = next.(model)
	assert.Len(t, m.market, 2)
	assert.Len(t, m.bots, 1)
	assert.Contains(t, m.View(), "RELIANCE")
}

func TestModelQuitAndUnavailable(t *testing.T) {
	m := model{interval: time.Second}
	next, _ := m.Update(snapshotMsg{marketErr: &backend.APIError{Status: 503}})
	m = next.(model)
	assert.Contains(t, m.View(), "market unavailable: server")
	assert.NotContains(t, m.View(), "BOT", "bots panel needs a token")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestModelSymbolDetail(t *testing.T) {
	m := model{interval: time.Second}
	next, _ := m.Update(snapshotMsg{market: backend.MarketSnapshot{
		"INFY": {Price: 1678.45, Change: 25.60},
		"TCS":  {Price: 3890.20, Change: -15.80},
	}})
	m = next.(model)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	assert.Equal(t, 1, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	assert.Equal(t, 1, m.cursor, "cursor stops at the last row")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	require.NotNil(t, cmd)
	assert.Equal(t, "TCS", m.detailSym)
	assert.Contains(t, m.View(), "loading...")

	// answers for another symbol are ignored
	next, _ = m.Update(stockMsg{symbol: "INFY", quote: &backend.Quote{Price: 1}})
	m = next.(model)
	assert.Nil(t, m.detail)

	next, _ = m.Update(stockMsg{symbol: "TCS", quote: &backend.Quote{Price: 3890.20, Change: -15.80, Volume: 890000}})
	m = next.(model)
	view := m.View()
	assert.Contains(t, view, "prev close 3906.00")
	assert.Contains(t, view, "volume 890000")

	next, _ = m.Update(stockMsg{symbol: "TCS", err: &backend.APIError{Status: 404}})
	m = next.(model)
	assert.Contains(t, m.View(), "lookup failed: server")
}
