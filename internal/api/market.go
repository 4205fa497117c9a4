package api

import (
	"net/http"
	"strings"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/pkg/backend"
)

// nseStocks is the static NSE snapshot served by /api/market/stocks.
var nseStocks = backend.MarketSnapshot{
	"RELIANCE":   {Price: 2456.75, Change: 12.30, Volume: 1250000},
	"TCS":        {Price: 3890.20, Change: -15.80, Volume: 890000},
	"INFY":       {Price: 1678.45, Change: 25.60, Volume: 1100000},
	"HDFCBANK":   {Price: 1545.30, Change: 8.70, Volume: 2100000},
	"ICICIBANK":  {Price: 987.65, Change: -3.25, Volume: 1850000},
	"WIPRO":      {Price: 432.15, Change: 7.80, Volume: 650000},
	"BHARTIARTL": {Price: 825.40, Change: -2.10, Volume: 980000},
	"ITC":        {Price: 456.20, Change: 4.50, Volume: 1650000},
}

func (s *Server) handleMarketStocks(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, nseStocks)
}

func (s *Server) handleMarketStock(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(httpx.PathParam(r, "symbol")))
	q, ok := nseStocks[symbol]
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Stock not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, backend.MarketSnapshot{symbol: q})
}
