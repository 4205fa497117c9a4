package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/zodic/zodic/pkg/backend"
	"github.com/zodic/zodic/pkg/config"
	"github.com/zodic/zodic/pkg/logger"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	upStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	downStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// tickMsg drives the periodic refresh.
type tickMsg time.Time

// stockMsg is the answer to a single-symbol lookup.
type stockMsg struct {
	symbol string
	quote  *backend.Quote
	err    error
}

// snapshotMsg carries the result of one refresh.
type snapshotMsg struct {
	market    backend.MarketSnapshot
	marketErr error
	bots      []backend.Bot
	botsErr   error
	at        time.Time
}

type model struct {
	client   *backend.Client
	token    string
	interval time.Duration

	market     backend.MarketSnapshot
	prev       backend.MarketSnapshot
	marketErr  error
	bots       []backend.Bot
	botsErr    error
	lastUpdate time.Time
	refreshing bool

	cursor    int
	detailSym string
	detail    *backend.Quote
	detailErr error
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) fetch() tea.Cmd {
	client, token := m.client, m.token
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msg := snapshotMsg{at: time.Now()}
		msg.market, msg.marketErr = client.Market(ctx)
		if token != "" {
			msg.bots, msg.botsErr = client.Bots(ctx, token)
		}
		return msg
	}
}

func (m model) lookup(symbol string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		q, err := client.Stock(ctx, symbol)
		return stockMsg{symbol: symbol, quote: q, err: err}
	}
}

// symbols returns the snapshot's symbols in display order.
func (m model) symbols() []string {
	out := make([]string, 0, len(m.market))
	for sym := range m.market {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tick(m.interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if !m.refreshing {
				m.refreshing = true
				return m, m.fetch()
			}
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.market)-1 {
				m.cursor++
			}
		case "enter":
			if syms := m.symbols(); m.cursor < len(syms) {
				m.detailSym = syms[m.cursor]
				m.detail, m.detailErr = nil, nil
				return m, m.lookup(m.detailSym)
			}
		}
	case stockMsg:
		if msg.symbol == m.detailSym {
			m.detail, m.detailErr = msg.quote, msg.err
		}
	case tickMsg:
		cmds := []tea.Cmd{tick(m.interval)}
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.fetch())
		}
		return m, tea.Batch(cmds...)
	case snapshotMsg:
		m.refreshing = false
		m.lastUpdate = msg.at
		m.marketErr = msg.marketErr
		if msg.marketErr == nil {
			m.prev, m.market = m.market, msg.market
			if m.cursor >= len(m.market) {
				m.cursor = max(len(m.market)-1, 0)
			}
		} else {
			logger.Warnf("market refresh failed: %v", msg.marketErr)
		}
		m.botsErr = msg.botsErr
		if msg.botsErr == nil && msg.bots != nil {
			m.bots = msg.bots
		}
		if msg.botsErr != nil {
			logger.Warnf("bots refresh failed (%s): %v", backend.Classify(msg.botsErr), msg.botsErr)
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("ZODIC market watch"))
	if !m.lastUpdate.IsZero() {
		b.WriteString(dimStyle.Render("  updated " + m.lastUpdate.Format("15:04:05")))
	}
	b.WriteString("\n\n")

	b.WriteString(borderStyle.Render(m.marketView()))
	b.WriteString("\n")
	if m.detailSym != "" {
		b.WriteString(borderStyle.Render(m.detailView()))
		b.WriteString("\n")
	}
	if m.token != "" {
		b.WriteString(borderStyle.Render(m.botsView()))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("↑/↓ select · enter details · r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) marketView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%-12s %12s %10s %8s %12s", "SYMBOL", "PRICE", "CHANGE", "%", "VOLUME")))
	b.WriteString("\n")
	if m.marketErr != nil && len(m.market) == 0 {
		b.WriteString(downStyle.Render("market unavailable: " + string(backend.Classify(m.marketErr))))
		return b.String()
	}
	symbols := m.symbols()
	for i, sym := range symbols {
		q := m.market[sym]
		style := upStyle
		if q.Change < 0 {
			style = downStyle
		}
		marker := " "
		if p, ok := m.prev[sym]; ok && p.Price != q.Price {
			marker = "*"
		}
		pointer := "  "
		if i == m.cursor {
			pointer = "> "
		}
		line := fmt.Sprintf("%s%-10s %12.2f %s %s %12d%s",
			pointer, sym, q.Price,
			style.Render(fmt.Sprintf("%+10.2f", q.Change)),
			style.Render(fmt.Sprintf("%7s%%", q.ChangePercent().StringFixed(2))),
			q.Volume, marker)
		b.WriteString(line)
		if i < len(symbols)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m model) detailView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.detailSym))
	b.WriteString("\n")
	switch {
	case m.detailErr != nil:
		b.WriteString(downStyle.Render("lookup failed: " + string(backend.Classify(m.detailErr))))
	case m.detail == nil:
		b.WriteString(dimStyle.Render("loading..."))
	default:
		q := m.detail
		prev := decimal.NewFromFloat(q.Price).Sub(decimal.NewFromFloat(q.Change))
		b.WriteString(fmt.Sprintf("price %.2f  prev close %s  change %+.2f (%s%%)  volume %d",
			q.Price, prev.StringFixed(2), q.Change, q.ChangePercent().StringFixed(2), q.Volume))
	}
	return b.String()
}

func (m model) botsView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%-20s %-16s %12s %6s %8s", "BOT", "STRATEGY", "CAPITAL", "RISK", "STATUS")))
	b.WriteString("\n")
	if m.botsErr != nil && len(m.bots) == 0 {
		b.WriteString(downStyle.Render("bots unavailable: " + string(backend.Classify(m.botsErr))))
		return b.String()
	}
	if len(m.bots) == 0 {
		b.WriteString(dimStyle.Render("no bots"))
		return b.String()
	}
	for i, bot := range m.bots {
		status := dimStyle.Render("paused")
		if bot.IsActive {
			status = upStyle.Render("active")
		}
		b.WriteString(fmt.Sprintf("%-20s %-16s %12.2f %5.1f%% %8s", bot.Name, bot.Strategy, bot.Capital, bot.RiskPercentage, status))
		if i < len(m.bots)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv("ZODIC_CONFIG"), "YAML/JSON config file (optional)")
		backendURL = flag.String("backend", "", "backend API base URL (overrides config)")
		token      = flag.String("token", os.Getenv("ZODIC_SESSION_TOKEN"), "backend session token; enables the bots panel")
		interval   = flag.Duration("interval", 0, "refresh interval (default web.live_market_interval)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *backendURL != "" {
		cfg.Web.BackendURL = *backendURL
	}
	if *interval <= 0 {
		*interval = cfg.Web.LiveMarketInterval
	}

	// the TUI owns the terminal, so logs go to a file only
	logCfg := cfg.Log
	if logCfg.File == "" {
		logCfg.File = "logs/market-watch.log"
	}
	if err := logger.Init(logCfg.LoggerConfig(true)); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.Close()

	m := model{
		client: backend.NewClient(backend.Options{
			BaseURL:   cfg.Web.BackendURL,
			Timeout:   cfg.Web.RequestTimeout,
			Retries:   cfg.Web.BackendRetries,
			UserAgent: "zodic-market-watch",
		}),
		token:    strings.TrimSpace(*token),
		interval: *interval,
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "market-watch: %v\n", err)
		os.Exit(1)
	}
}
