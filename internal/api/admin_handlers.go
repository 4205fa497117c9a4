package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zodic/zodic/internal/httpx"
	"github.com/zodic/zodic/pkg/backend"
)

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if s.requireAdmin(ctx, w, r) == nil {
		return
	}
	users, err := s.listUsers(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("db list: %v", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleAdminUserRole(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	admin := s.requireAdmin(ctx, w, r)
	if admin == nil {
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != backend.RoleAdmin && role != backend.RoleClient {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid role")
		return
	}

	userID := httpx.PathParam(r, "userID")
	ok, err := s.updateUserRole(ctx, userID, role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("db update: %v", err))
		return
	}
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	s.log.WithField("admin_id", admin.ID).WithField("user_id", userID).Infof("role set to %s", role)
	httpx.WriteJSON(w, http.StatusOK, backend.MessageResponse{Message: "User role updated successfully"})
}
