package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/pkg/backend"
)

func (s *Server) handleBotsList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	u := s.requireUser(ctx, w, r)
	if u == nil {
		return
	}
	bots, err := s.listUserBots(ctx, u.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("db list: %v", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bots)
}

func (s *Server) handleBotsCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	u := s.requireUser(ctx, w, r)
	if u == nil {
		return
	}

	var req backend.CreateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Strategy = strings.TrimSpace(req.Strategy)
	switch {
	case req.Name == "":
		httpx.WriteError(w, http.StatusBadRequest, "name is required")
		return
	case req.Strategy == "":
		httpx.WriteError(w, http.StatusBadRequest, "strategy is required")
		return
	case req.Capital == nil:
		httpx.WriteError(w, http.StatusBadRequest, "capital is required")
		return
	case *req.Capital < 0:
		httpx.WriteError(w, http.StatusBadRequest, "capital must not be negative")
		return
	}

	risk := backend.DefaultRiskPercentage
	if req.RiskPercentage != nil {
		risk = *req.RiskPercentage
	}

	b := backend.Bot{
		ID:             uuid.NewString(),
		UserID:         u.ID,
		Name:           req.Name,
		Strategy:       req.Strategy,
		Capital:        *req.Capital,
		RiskPercentage: risk,
		IsActive:       false,
		CreatedAt:      s.cfg.Now().UTC(),
		Performance:    map[string]any{},
	}
	if err := s.insertBot(ctx, b); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("db insert: %v", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (s *Server) handleBotToggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	u := s.requireUser(ctx, w, r)
	if u == nil {
		return
	}

	botID := httpx.PathParam(r, "botID")
	b, err := s.getUserBot(ctx, u.ID, botID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("db get: %v", err))
		return
	}
	if b == nil {
		httpx.WriteError(w, http.StatusNotFound, "Bot not found")
		return
	}

	active := !b.IsActive
	if err := s.setBotActive(ctx, b.ID, active); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("db update: %v", err))
		return
	}
	verb := "deactivated"
	if active {
		verb = "activated"
	}
	httpx.WriteJSON(w, http.StatusOK, backend.MessageResponse{Message: "Bot " + verb + " successfully"})
}
