// Package flow sequences camera capture and ticket analysis through a small
// state machine. Each state carries only the data valid for it.
package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/zombor/lotto-checker/internal/capture"
	"github.com/zombor/lotto-checker/internal/ticket"
)

// FailureMessage is the only error text ever shown for a failed analysis
const FailureMessage = "We couldn't read the ticket properly. Please ensure the numbers are clear and try again."

// ErrInvalidTransition is returned when an event does not apply to the current state
var ErrInvalidTransition = errors.New("invalid transition")

// StateName identifies a state
type StateName string

const (
	StateHome       StateName = "HOME"
	StateScanning   StateName = "SCANNING"
	StateProcessing StateName = "PROCESSING"
	StateResult     StateName = "RESULT"
	StateError      StateName = "ERROR"
)

// State is one of Home, Scanning, Processing, Result or Failure
type State interface {
	Name() StateName
	state()
}

// Home is the initial state
type Home struct{}

// Scanning holds the camera open. CameraError is set when the camera could not be opened.
type Scanning struct {
	CameraError string
}

// Processing waits for the analysis started at Since
type Processing struct {
	Since time.Time
}

// Result carries a successful analysis
type Result struct {
	Result *ticket.LottoResult
}

// Failure carries the user facing message of a failed analysis
type Failure struct {
	Message string
}

func (Home) Name() StateName       { return StateHome }
func (Scanning) Name() StateName   { return StateScanning }
func (Processing) Name() StateName { return StateProcessing }
func (Result) Name() StateName     { return StateResult }
func (Failure) Name() StateName    { return StateError }

func (Home) state()       {}
func (Scanning) state()   {}
func (Processing) state() {}
func (Result) state()     {}
func (Failure) state()    {}

// Event is something that happened to a session
type Event interface {
	event()
}

// StartScan is the user asking to scan a ticket
type StartScan struct{}

// CameraFailed reports that the camera could not be opened
type CameraFailed struct {
	Err error
}

// Cancel is the user leaving the scanner
type Cancel struct{}

// Capture is the user taking the picture
type Capture struct {
	At time.Time
}

// AnalysisSucceeded delivers the analysis result
type AnalysisSucceeded struct {
	Result *ticket.LottoResult
}

// AnalysisFailed reports that the analysis failed
type AnalysisFailed struct {
	Err error
}

// Reset returns to the start
type Reset struct{}

func (StartScan) event()         {}
func (CameraFailed) event()      {}
func (Cancel) event()            {}
func (Capture) event()           {}
func (AnalysisSucceeded) event() {}
func (AnalysisFailed) event()    {}
func (Reset) event()             {}

// Transition returns the state that follows s after e.
// Invalid combinations return ErrInvalidTransition and leave s as it was.
func Transition(s State, e Event) (State, error) {
	switch ev := e.(type) {
	case Reset:
		return Home{}, nil
	case StartScan:
		if _, ok := s.(Home); ok {
			return Scanning{}, nil
		}
	case CameraFailed:
		if _, ok := s.(Scanning); ok {
			return Scanning{CameraError: capture.CameraUnavailableMessage}, nil
		}
	case Cancel:
		if _, ok := s.(Scanning); ok {
			return Home{}, nil
		}
	case Capture:
		if sc, ok := s.(Scanning); ok && sc.CameraError == "" {
			return Processing{Since: ev.At}, nil
		}
	case AnalysisSucceeded:
		if _, ok := s.(Processing); ok && ev.Result != nil {
			return Result{Result: ev.Result}, nil
		}
	case AnalysisFailed:
		if _, ok := s.(Processing); ok {
			return Failure{Message: FailureMessage}, nil
		}
	}
	return s, fmt.Errorf("%w: %T in %s", ErrInvalidTransition, e, s.Name())
}
