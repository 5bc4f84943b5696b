package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/lotto-checker/internal/capture"
	"github.com/zombor/lotto-checker/internal/flow"
	"github.com/zombor/lotto-checker/internal/ticket"
)

const (
	sessionCookie = "lotto_session"

	// 50MB to handle high-resolution phone photos
	maxUploadSize = int64(50 << 20)
)

// snapshot is the JSON form of a session's current state
type snapshot struct {
	State        string              `json:"state"`
	ServerCamera bool                `json:"serverCamera"`
	CameraError  string              `json:"cameraError,omitempty"`
	Error        string              `json:"error,omitempty"`
	Result       *ticket.LottoResult `json:"result,omitempty"`
}

func newSnapshot(st flow.State, serverCamera bool) snapshot {
	snap := snapshot{State: string(st.Name()), ServerCamera: serverCamera}
	switch st := st.(type) {
	case flow.Scanning:
		snap.CameraError = st.CameraError
	case flow.Failure:
		snap.Error = st.Message
	case flow.Result:
		snap.Result = st.Result
	}
	return snap
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// session returns the caller's session, issuing a new cookie when the
// presented one is missing or no longer known
func (s *Server) session(w http.ResponseWriter, r *http.Request) *flow.Session {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}

	sess := s.sessions.GetOrCreate(id)
	if sess.ID() != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// respond writes the session snapshot, or the error of a rejected action
func (s *Server) respond(w http.ResponseWriter, sess *flow.Session, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newSnapshot(sess.State(), sess.HasCamera()))
	case errors.Is(err, flow.ErrInvalidTransition):
		writeJSONError(w, "Action not allowed in state "+string(sess.State().Name()), http.StatusConflict)
	case errors.Is(err, flow.ErrNoFrame):
		writeJSONError(w, "No image was captured. Please try again.", http.StatusBadRequest)
	case errors.Is(err, capture.ErrCameraUnavailable):
		writeJSONError(w, capture.CameraUnavailableMessage, http.StatusServiceUnavailable)
	case errors.Is(err, flow.ErrClosed):
		writeJSONError(w, "Session expired. Please reload the page.", http.StatusGone)
	default:
		slog.Error("Session action failed", "session", sess.ID(), "error", err)
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleGetSession returns the caller's current state
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.respond(w, sess, nil)
}

// handleView renders the HTML fragment for the caller's current state
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	body, err := renderState(sess.State(), sess.HasCamera())
	if err != nil {
		slog.Error("Error rendering view", "session", sess.ID(), "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(body)
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.respond(w, sess, sess.StartScan(r.Context()))
}

func (s *Server) handleCameraFailed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	// The reason is informational only
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		req.Reason = "camera permission denied"
	}

	sess := s.session(w, r)
	s.respond(w, sess, sess.CameraFailed(errors.New(req.Reason)))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.respond(w, sess, sess.Cancel())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.respond(w, sess, sess.Reset())
}

// handleCapture takes the still from the server camera, or from the uploaded file
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess.HasCamera() {
		s.respond(w, sess, sess.Capture(nil, ""))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.respond(w, sess, sess.Capture(nil, ""))
			return
		}
		slog.Error("Error getting file from form", "error", err)
		writeJSONError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)
	s.respond(w, sess, sess.Capture(data, contentType))
}

// uploadContentType normalizes the declared type, falling back to the file extension
func uploadContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handlePreview returns the current server camera frame
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if !sess.HasCamera() {
		corsError(w, "No server camera configured", http.StatusNotFound)
		return
	}

	frame, err := sess.Preview()
	if err != nil {
		if errors.Is(err, capture.ErrNotStarted) {
			corsError(w, "Camera not started", http.StatusConflict)
			return
		}
		slog.Warn("Error reading preview frame", "session", sess.ID(), "error", err)
		corsError(w, "Preview unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}
