package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zodic/zodic/internal/httpx"
)

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	u := s.requireUser(ctx, w, r)
	if u == nil {
		return
	}
	p, err := s.getOrCreatePortfolio(ctx, u.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("db portfolio: %v", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	u := s.requireUser(ctx, w, r)
	if u == nil {
		return
	}
	trades, err := s.listUserTrades(ctx, u.ID, maxTradeHistory)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("db list: %v", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, trades)
}
