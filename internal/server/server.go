// Package server exposes the HTTP API. Handlers decode requests, delegate to
// the service layer and translate domain errors to status codes; they hold no
// business logic of their own.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/splitsync/internal/auth"
	"github.com/mmynk/splitsync/internal/service"
	"github.com/mmynk/splitsync/internal/session"
)

// Server holds the service layer and builds the route table.
type Server struct {
	groups   *service.GroupService
	invites  *service.InviteCodeAllocator
	content  *service.ContentService
	sync     *service.SyncService
	auth     *auth.Service
	accounts *auth.PasswordAuthenticator
}

// New creates a Server over the given services.
func New(
	groups *service.GroupService,
	invites *service.InviteCodeAllocator,
	content *service.ContentService,
	sync *service.SyncService,
	authService *auth.Service,
	accounts *auth.PasswordAuthenticator,
) *Server {
	return &Server{
		groups:   groups,
		invites:  invites,
		content:  content,
		sync:     sync,
		auth:     authService,
		accounts: accounts,
	}
}

// Routes registers all handlers on a new mux. Everything under /api except
// signup and login requires a valid token bound to a live session.
func (s *Server) Routes(requireAuth func(http.Handler) http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/signup", s.handleSignup)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(h))
	}

	protected("POST /api/logout", s.handleLogout)
	protected("GET /api/sessions", s.handleSessions)
	protected("DELETE /api/sessions/device/{deviceID}", s.handleInvalidateDevice)
	protected("DELETE /api/sessions/others", s.handleInvalidateOthers)
	protected("DELETE /api/account", s.handleDeleteAccount)

	protected("GET /api/groups", s.handleGroupsOverview)
	protected("POST /api/groups", s.handleCreateGroup)
	protected("POST /api/groups/{id}/name", s.handleRenameGroup)
	protected("POST /api/groups/{id}/overwrite", s.handleSetOverwrite)
	protected("POST /api/groups/{id}/leave", s.handleLeaveGroup)
	protected("POST /api/groups/{id}/invite", s.handleEnableInvite)
	protected("DELETE /api/groups/{id}/invite", s.handleDisableInvite)
	protected("POST /api/groups/join/{code}", s.handleJoinGroup)

	protected("GET /api/groups/{id}/sync", s.handleSync)

	protected("POST /api/groups/{id}/transactions", s.handleAddTransaction)
	protected("PUT /api/groups/{id}/transactions/{contentID}", s.handleUpdateTransaction)
	protected("DELETE /api/groups/{id}/transactions/{contentID}", s.handleDeleteTransaction)
	protected("POST /api/groups/{id}/transfers", s.handleAddTransfer)
	protected("PUT /api/groups/{id}/transfers/{contentID}", s.handleUpdateTransfer)
	protected("DELETE /api/groups/{id}/transfers/{contentID}", s.handleDeleteTransfer)

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// respondJSON writes v with the given status. A nil v writes the status only.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors to HTTP status codes. Unrecognized errors
// become opaque 500s so internals never leak to clients.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrAccessDenied):
		status, msg = http.StatusForbidden, "access denied"
	case errors.Is(err, service.ErrConcurrentModification):
		status, msg = http.StatusConflict, "concurrent modification, please retry"
	case errors.Is(err, service.ErrSettlementRequired),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrGroupFull),
		errors.Is(err, service.ErrInvalidContent),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, session.ErrInvalidOperation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// pathID parses a numeric path value.
func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// badRequest writes a 400 with the given message.
func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
