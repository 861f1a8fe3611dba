package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmynk/splitsync/internal/middleware"
)

const maxGroupNameLength = 70

type createGroupRequest struct {
	Name string `json:"name"`
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

type overwriteRequest struct {
	Overwrite bool `json:"overwrite"`
}

type inviteResponse struct {
	Code string `json:"code"`
}

func validGroupName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && len(name) <= maxGroupNameLength
}

func (s *Server) handleGroupsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.groups.GroupsAndMembers(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !validGroupName(req.Name) {
		badRequest(w, "invalid group name")
		return
	}

	group, err := s.groups.Create(r.Context(), strings.TrimSpace(req.Name), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}
	var req renameGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !validGroupName(req.Name) {
		badRequest(w, "invalid group name")
		return
	}

	group, err := s.groups.Rename(r.Context(), groupID, strings.TrimSpace(req.Name), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleSetOverwrite(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}
	var req overwriteRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if err := s.groups.SetOverwrite(r.Context(), groupID, req.Overwrite, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}

	if err := s.groups.Leave(r.Context(), groupID, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleEnableInvite(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}

	code, err := s.invites.Enable(r.Context(), groupID, middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inviteResponse{Code: code})
}

func (s *Server) handleDisableInvite(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}

	if err := s.invites.Disable(r.Context(), groupID, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

// handleJoinGroup joins via invite code and answers with the new member's
// initial view: the group metadata plus a full sync delta from watermark 0,
// so the device needs no follow-up request to render the group.
func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	userID := middleware.GetUserID(r.Context())

	group, err := s.groups.Join(r.Context(), code, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	groupJSON, err := json.Marshal(group)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"group":%s,"delta":`, groupJSON); err != nil {
		return
	}
	if err := s.sync.StreamDelta(r.Context(), group.ID, 0, nil, userID, w); err != nil {
		// The join already committed and part of the body may be out.
		// Truncating leaves the client with invalid JSON, which it treats
		// as a failed snapshot and retries via a plain sync request.
		panic(http.ErrAbortHandler)
	}
	fmt.Fprint(w, `}`)
}
