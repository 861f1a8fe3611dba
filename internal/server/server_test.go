package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/mmynk/splitsync/internal/auth"
	"github.com/mmynk/splitsync/internal/service"
	"github.com/mmynk/splitsync/internal/session"
)

func TestParseIDList(t *testing.T) {
	tests := []struct {
		in      string
		want    []int64
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "42", want: []int64{42}},
		{in: "1,2,3", want: []int64{1, 2, 3}},
		{in: " 1 , 2 ", want: []int64{1, 2}},
		{in: "1,x", wantErr: true},
		{in: ",", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseIDList(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseIDList(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseIDList(%q) failed: %v", tt.in, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("parseIDList(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrAccessDenied, http.StatusForbidden},
		{service.ErrConcurrentModification, http.StatusConflict},
		{service.ErrSettlementRequired, http.StatusBadRequest},
		{service.ErrAlreadyMember, http.StatusBadRequest},
		{service.ErrGroupFull, http.StatusBadRequest},
		{service.ErrInvalidContent, http.StatusBadRequest},
		{service.ErrAllocationFailed, http.StatusInternalServerError},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrWeakPassword, http.StatusBadRequest},
		{auth.ErrEmailExists, http.StatusBadRequest},
		{session.ErrInvalidOperation, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/test", nil)

			respondError(w, r, tt.err)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}
