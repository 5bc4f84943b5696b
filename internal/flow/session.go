package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/lotto-checker/internal/capture"
	"github.com/zombor/lotto-checker/internal/scanning"
	"github.com/zombor/lotto-checker/internal/ticket"
)

// ErrNoFrame is returned when a capture has neither a server camera nor an uploaded still
var ErrNoFrame = errors.New("no image captured")

// ErrClosed is returned by a session that has been closed
var ErrClosed = errors.New("session closed")

// Recorder keeps successful analyses
type Recorder interface {
	Record(ctx context.Context, image []byte, result *ticket.LottoResult) error
}

// Options configures optional session collaborators
type Options struct {
	// Camera is a server attached camera. When nil the client uploads the still.
	Camera capture.Camera
	// Recorder receives every successful analysis
	Recorder Recorder
	// Now overrides the clock
	Now func() time.Time
}

// Session drives one user's flow from Home to a Result or Failure
type Session struct {
	id       string
	analyzer scanning.Analyzer
	camera   *capture.Controller
	recorder Recorder
	now      func() time.Time

	mu           sync.Mutex
	state        State
	generation   uint64
	cancel       context.CancelFunc
	lastActivity time.Time
	subscribers  map[chan State]struct{}
	closed       bool

	wg sync.WaitGroup
}

// NewSession creates a session in the Home state
func NewSession(id string, analyzer scanning.Analyzer, opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Session{
		id:          id,
		analyzer:    analyzer,
		recorder:    opts.Recorder,
		now:         now,
		state:       Home{},
		subscribers: make(map[chan State]struct{}),
	}
	if opts.Camera != nil {
		s.camera = capture.NewController(opts.Camera)
	}
	s.lastActivity = now()
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasCamera reports whether stills come from a server camera
func (s *Session) HasCamera() bool {
	return s.camera != nil
}

// LastActivity returns when the session was last used
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Subscribe returns a channel receiving every new state. Slow readers only see the latest.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

// apply runs a transition. Callers hold s.mu.
func (s *Session) apply(e Event) error {
	next, err := Transition(s.state, e)
	if err != nil {
		return err
	}
	s.state = next
	s.lastActivity = s.now()

	for ch := range s.subscribers {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
	return nil
}

// abort cancels any in-flight analysis and makes its result stale. Callers hold s.mu.
func (s *Session) abort() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) stopCamera() {
	if s.camera == nil {
		return
	}
	if err := s.camera.Stop(); err != nil {
		slog.Warn("Failed to release camera", "session", s.id, "error", err)
	}
}

// StartScan enters Scanning and opens the server camera if there is one.
// A camera failure keeps the session in Scanning with an inline message.
func (s *Session) StartScan(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.apply(StartScan{}); err != nil {
		return err
	}

	if s.camera != nil {
		if err := s.camera.Start(ctx); err != nil {
			slog.Warn("Camera unavailable", "session", s.id, "error", err)
			return s.apply(CameraFailed{Err: err})
		}
	}
	return nil
}

// CameraFailed records a camera the client could not open. The session stays in Scanning.
func (s *Session) CameraFailed(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Warn("Camera unavailable", "session", s.id, "error", err)
	return s.apply(CameraFailed{Err: err})
}

// Cancel leaves the scanner and releases the camera
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.apply(Cancel{}); err != nil {
		return err
	}
	s.stopCamera()
	return nil
}

// Preview returns the current server camera frame as JPEG
func (s *Session) Preview() ([]byte, error) {
	if s.camera == nil {
		return nil, capture.ErrNotStarted
	}
	return s.camera.Preview()
}

// Capture takes the still and starts the analysis in the background.
// frame is the client captured still and is ignored when a server camera is used.
func (s *Session) Capture(frame []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	now := s.now()
	if _, err := Transition(s.state, Capture{At: now}); err != nil {
		return err
	}

	var still []byte
	if s.camera != nil {
		data, err := s.camera.Capture()
		if err != nil {
			slog.Warn("Failed to capture still", "session", s.id, "error", err)
			s.stopCamera()
			if applyErr := s.apply(CameraFailed{Err: err}); applyErr != nil {
				return applyErr
			}
			return fmt.Errorf("%w: capturing still: %w", capture.ErrCameraUnavailable, err)
		}
		still, contentType = data, "image/jpeg"
	} else {
		if len(frame) == 0 {
			return ErrNoFrame
		}
		still = frame
	}

	if err := s.apply(Capture{At: now}); err != nil {
		return err
	}

	s.abort()
	generation := s.generation

	req, err := scanning.NewRequest(still, contentType)
	if err != nil {
		slog.Error("Ticket image could not be prepared", "session", s.id, "content_type", contentType, "size", len(still), "error", err)
		return s.apply(AnalysisFailed{Err: err})
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.analyze(ctx, generation, req)
	return nil
}

func (s *Session) analyze(ctx context.Context, generation uint64, req scanning.Request) {
	defer s.wg.Done()

	result, err := s.analyzer.Analyze(ctx, req)

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		slog.Debug("Discarding stale analysis", "session", s.id, "error", err)
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if err != nil {
		slog.Error("Ticket analysis failed", "session", s.id, "image_size", len(req.Image), "error", err)
		s.apply(AnalysisFailed{Err: err})
		s.mu.Unlock()
		return
	}
	if result == nil {
		slog.Error("Ticket analysis returned no result", "session", s.id)
		s.apply(AnalysisFailed{Err: errors.New("empty result")})
		s.mu.Unlock()
		return
	}

	s.apply(AnalysisSucceeded{Result: result})
	recorder := s.recorder
	s.mu.Unlock()

	if recorder != nil {
		if err := recorder.Record(context.Background(), req.Image, result); err != nil {
			slog.Warn("Failed to record scan", "session", s.id, "draw", result.DrawNumber, "error", err)
		}
	}
}

// Reset returns to Home, aborting any analysis and releasing the camera
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.apply(Reset{}); err != nil {
		return err
	}
	s.abort()
	s.stopCamera()
	return nil
}

// Close aborts work, releases the camera and ends all subscriptions
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.abort()
	s.stopCamera()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Wait blocks until background analyses have returned
func (s *Session) Wait() {
	s.wg.Wait()
}
