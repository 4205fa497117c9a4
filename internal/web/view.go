package web

import "github.com/zodic/zodic/pkg/backend"

type View int

const (
	ViewNotFound View = iota
	ViewLanding
	ViewAuthRedirect
	ViewHandoff
	ViewDashboard
)

func (v View) String() string {
	switch v {
	case ViewLanding:
		return "landing"
	case ViewAuthRedirect:
		return "auth-redirect"
	case ViewHandoff:
		return "handoff"
	case ViewDashboard:
		return "dashboard"
	default:
		return "not-found"
	}
}

const (
	PathRoot      = "/"
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
)

// Decision is either a view to render or a local redirect.
type Decision struct {
	View     View
	Redirect string
}

// Select picks what to show for path given the resolved user (nil when signed out).
func Select(path string, user *backend.User) Decision {
	switch path {
	case PathRoot:
		if user != nil {
			return Decision{Redirect: PathDashboard}
		}
		return Decision{View: ViewLanding}
	case PathLogin:
		return Decision{View: ViewAuthRedirect}
	case PathDashboard:
		if user != nil {
			return Decision{View: ViewDashboard}
		}
		return Decision{View: ViewHandoff}
	}
	return Decision{View: ViewNotFound}
}

// Dashboard tabs.
const (
	TabOverview  = "overview"
	TabUsers     = "users"
	TabBots      = "bots"
	TabTrades    = "trades"
	TabPortfolio = "portfolio"
	TabMarket    = "market"
)

var (
	clientTabs = []string{TabOverview, TabBots, TabTrades, TabPortfolio, TabMarket}
	adminTabs  = []string{TabOverview, TabUsers, TabBots, TabTrades, TabPortfolio, TabMarket}
)

// Tabs lists the dashboard tabs visible to user, in display order.
func Tabs(user *backend.User) []string {
	if user.IsAdmin() {
		return append([]string(nil), adminTabs...)
	}
	return append([]string(nil), clientTabs...)
}

// ActiveTab returns requested when user may see it, else overview.
func ActiveTab(user *backend.User, requested string) string {
	for _, t := range Tabs(user) {
		if t == requested {
			return t
		}
	}
	return TabOverview
}
