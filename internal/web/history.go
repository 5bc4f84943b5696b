package web

import (
	"log/slog"
	"net/http"

	"github.com/zombor/lotto-checker/internal/history"
)

// handleListHistory returns all recorded scans, newest first
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.ListScans()
	if err != nil {
		slog.Error("Error listing history", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if entries == nil {
		entries = []*history.Scan{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetHistoryScan returns a single recorded scan
func (s *Server) handleGetHistoryScan(w http.ResponseWriter, r *http.Request) {
	entry, err := s.history.GetScan(r.PathValue("id"))
	if err != nil {
		corsError(w, "Scan not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleGetHistoryImage returns the ticket photo of a recorded scan
func (s *Server) handleGetHistoryImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.history.GetImage(r.PathValue("id"))
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// handleDeleteHistoryScan deletes a recorded scan
func (s *Server) handleDeleteHistoryScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.history.GetScan(id); err != nil {
		corsError(w, "Scan not found", http.StatusNotFound)
		return
	}
	if err := s.history.DeleteScan(id); err != nil {
		slog.Error("Error deleting history entry", "id", id, "error", err)
		corsError(w, "Error deleting scan", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
