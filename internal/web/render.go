package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zodic/zodic/pkg/backend"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseViews() (*template.Template, error) {
	return template.New("views").Funcs(viewFuncs).ParseFS(templateFS, "templates/*.html")
}

var viewFuncs = template.FuncMap{
	"money":       money,
	"moneyD":      moneyDecimal,
	"signed":      signed,
	"pct":         func(q backend.Quote) string { return signedDecimal(q.ChangePercent()) + "%" },
	"up":          func(v float64) bool { return v >= 0 },
	"label":       metricLabel,
	"initial":     initial,
	"when":        func(t time.Time) string { return t.Local().Format("02 Jan 2006 15:04") },
	"isAdmin":     func(u *backend.User) bool { return u.IsAdmin() },
	"hasSections": func(s []string) bool { return len(s) > 0 },
	"join":        strings.Join,
}

// money formats v with two decimals and thousands separators.
func money(v float64) string {
	return moneyDecimal(decimal.NewFromFloat(v))
}

func moneyDecimal(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// signed formats v with an explicit sign, e.g. "+12.30" or "-15.80".
func signed(v float64) string {
	return signedDecimal(decimal.NewFromFloat(v))
}

func signedDecimal(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

// metricLabel turns "total_trades_today" into "Total trades today".
func metricLabel(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.views.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.WithError(err).WithField("view", name).Error("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
