package scanning

import (
	"context"
	"fmt"

	"github.com/zombor/lotto-checker/internal/ticket"
)

const (
	// placeholderTitle is used for citations that arrive without a title
	placeholderTitle = "Official Source"
	// placeholderURI is used for citations that arrive without a link
	placeholderURI = "#"
)

// Request is a single captured ticket image ready to be analysed.
// Image is always JPEG encoded.
type Request struct {
	Image    []byte
	MIMEType string
}

// NewRequest normalises uploaded image data into a Request
func NewRequest(data []byte, contentType string) (Request, error) {
	if len(data) == 0 {
		return Request{}, fmt.Errorf("empty image")
	}
	jpegData, _, err := prepareImageData(data, contentType)
	if err != nil {
		return Request{}, err
	}
	return Request{Image: jpegData, MIMEType: "image/jpeg"}, nil
}

// AnalysisError is returned for any failure to obtain a usable result
type AnalysisError struct {
	Op  string
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %s: %v", e.Op, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func analysisError(op string, err error) error {
	return &AnalysisError{Op: op, Err: err}
}

// Analyzer defines the interface for ticket analysis backends
type Analyzer interface {
	// Analyze extracts the ticket rows and grades them against the official draw
	Analyze(ctx context.Context, req Request) (*ticket.LottoResult, error)
	// Close releases any client resources
	Close() error
}
