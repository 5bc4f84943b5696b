// Package capture acquires a camera stream and freezes stills from it.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// CameraUnavailableMessage is shown to the user when the camera cannot be opened
const CameraUnavailableMessage = "Unable to access camera. Please check your permissions."

const stillQuality = 92

var (
	// ErrCameraUnavailable is returned when permission is denied or no camera exists
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrNotStarted is returned when a frame is requested without an open stream
	ErrNotStarted = errors.New("camera not started")
)

// Camera opens video streams from a rear facing camera
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live, exclusively held camera stream
type Stream interface {
	// Frame returns the most recent frame at native resolution
	Frame() (image.Image, error)
	// Close releases the camera
	Close() error
}

// Controller holds at most one stream from its camera
type Controller struct {
	camera Camera

	mu     sync.Mutex
	stream Stream
}

// NewController creates a Controller for camera
func NewController(camera Camera) *Controller {
	return &Controller{camera: camera}
}

// Start opens the camera stream. Starting an active controller does nothing.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}

	stream, err := c.camera.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrCameraUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	c.stream = stream
	return nil
}

// Active reports whether a stream is currently held
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Preview returns the current frame as JPEG without releasing the stream
func (c *Controller) Preview() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil, ErrNotStarted
	}
	img, err := c.stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return EncodeStill(img)
}

// Capture freezes the current frame into a JPEG still and releases the stream
func (c *Controller) Capture() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil, ErrNotStarted
	}

	stream := c.stream
	c.stream = nil
	defer stream.Close()

	img, err := stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return EncodeStill(img)
}

// Stop releases the stream if one is held
func (c *Controller) Stop() error {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("closing camera stream: %w", err)
	}
	return nil
}

// EncodeStill encodes a frame as JPEG at its native dimensions
func EncodeStill(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(stillQuality)); err != nil {
		return nil, fmt.Errorf("encoding still: %w", err)
	}
	return buf.Bytes(), nil
}
