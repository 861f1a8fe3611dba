package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmynk/splitsync/internal/middleware"
)

// flushWriter flushes after every write so delta elements reach the device
// as they are produced instead of sitting in the response buffer.
type flushWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	written bool
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	f, _ := w.(http.Flusher)
	return &flushWriter{w: w, flusher: f}
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if n > 0 {
		fw.written = true
	}
	if err == nil && fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}

// handleSync streams the incremental delta for a group.
//
// Query parameters: watermark (highest content id the device has seen,
// defaults to 0) and known (comma-separated content ids the device holds,
// used to surface deletions of items created before the watermark).
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}

	watermark := int64(0)
	if v := r.URL.Query().Get("watermark"); v != "" {
		watermark, err = strconv.ParseInt(v, 10, 64)
		if err != nil || watermark < 0 {
			badRequest(w, "invalid watermark")
			return
		}
	}

	knownIDs, err := parseIDList(r.URL.Query().Get("known"))
	if err != nil {
		badRequest(w, "invalid known ids")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fw := newFlushWriter(w)
	if err := s.sync.StreamDelta(r.Context(), groupID, watermark, knownIDs, middleware.GetUserID(r.Context()), fw); err != nil {
		// Access and snapshot errors surface before the first byte, so a
		// normal error response is still possible. After that the only
		// honest signal is an aborted connection: the truncated body never
		// parses as JSON, so the device discards it.
		if !fw.written {
			respondError(w, r, err)
			return
		}
		slog.Error("Sync stream aborted", "group_id", groupID, "error", err)
		panic(http.ErrAbortHandler)
	}
}

// parseIDList parses a comma-separated list of int64 ids. Empty input yields
// a nil slice.
func parseIDList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
