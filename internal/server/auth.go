package server

import (
	"net/http"

	"github.com/mmynk/splitsync/internal/middleware"
	"github.com/mmynk/splitsync/internal/models"
)

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Device   string `json:"device"`
}

type loginResponse struct {
	Token   string                `json:"token"`
	Session *models.SessionRecord `json:"session"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Name == "" {
		badRequest(w, "email and name are required")
		return
	}

	user, err := s.accounts.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	token, rec, err := s.auth.Login(r.Context(), req.Email, req.Password, req.Device)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Token: token, Session: rec})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), middleware.GetSessionID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.auth.Sessions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleInvalidateDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceID")
	ctx := r.Context()

	if err := s.auth.InvalidateDevice(ctx, middleware.GetUserID(ctx), deviceID, middleware.GetSessionID(ctx)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleInvalidateOthers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.auth.InvalidateOtherSessions(ctx, middleware.GetUserID(ctx), middleware.GetSessionID(ctx)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.auth.DeleteAccount(ctx, middleware.GetUserID(ctx), middleware.GetSessionID(ctx)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}
