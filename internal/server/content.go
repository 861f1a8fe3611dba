package server

import (
	"net/http"

	"github.com/mmynk/splitsync/internal/middleware"
	"github.com/mmynk/splitsync/internal/models"
)

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}
	var txn models.Transaction
	if err := decodeJSON(r, &txn); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	txn.GroupID = groupID

	if err := s.content.AddTransaction(r.Context(), &txn, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}
	var txn models.Transaction
	if err := decodeJSON(r, &txn); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	txn.GroupID = groupID
	txn.ID = contentID

	if err := s.content.UpdateTransaction(r.Context(), &txn, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	if err := s.content.DeleteTransaction(r.Context(), groupID, contentID, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleAddTransfer(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}
	var tr models.Transfer
	if err := decodeJSON(r, &tr); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	tr.GroupID = groupID

	if err := s.content.AddTransfer(r.Context(), &tr, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tr)
}

func (s *Server) handleUpdateTransfer(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		badRequest(w, "invalid transfer id")
		return
	}
	var tr models.Transfer
	if err := decodeJSON(r, &tr); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	tr.GroupID = groupID
	tr.ID = contentID

	if err := s.content.UpdateTransfer(r.Context(), &tr, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tr)
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		badRequest(w, "invalid transfer id")
		return
	}

	if err := s.content.DeleteTransfer(r.Context(), groupID, contentID, middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}
