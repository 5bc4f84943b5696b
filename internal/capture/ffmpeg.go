package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

const maxFrameSize = 16 << 20

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpeg is a server attached camera read through an ffmpeg subprocess.
// Video only; audio is never opened.
type FFmpeg struct {
	// Binary is the ffmpeg executable, "ffmpeg" when empty
	Binary string
	// Device is the input device, e.g. /dev/video0 or "0" on macOS
	Device string
	// InputFormat is the ffmpeg demuxer, v4l2 on Linux and avfoundation on macOS when empty
	InputFormat string
	// FirstFrameTimeout bounds how long Open waits for the device to deliver a frame
	FirstFrameTimeout time.Duration
}

func (f *FFmpeg) args() []string {
	format := f.InputFormat
	if format == "" {
		format = "v4l2"
		if runtime.GOOS == "darwin" {
			format = "avfoundation"
		}
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format, "-i", f.Device,
		"-an",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "2",
		"-",
	}
}

// Open starts ffmpeg and waits for the first frame
func (f *FFmpeg) Open(ctx context.Context) (Stream, error) {
	binary := f.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	timeout := f.FirstFrameTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	// The stream outlives the request that opened it, so ctx only bounds the wait below
	cmd := exec.Command(binary, f.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting ffmpeg: %v", ErrCameraUnavailable, err)
	}

	s := newPipeStream(stdout, cmd)

	select {
	case <-s.ready:
		return s, nil
	case <-s.done:
		s.Close()
		return nil, fmt.Errorf("%w: device %s produced no frames: %v", ErrCameraUnavailable, f.Device, s.readErr())
	case <-time.After(timeout):
		s.Close()
		return nil, fmt.Errorf("%w: timed out waiting for device %s", ErrCameraUnavailable, f.Device)
	case <-ctx.Done():
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, ctx.Err())
	}
}

// pipeStream keeps the latest JPEG frame read from an MJPEG pipe
type pipeStream struct {
	cmd *exec.Cmd
	rc  io.ReadCloser

	mu     sync.Mutex
	latest []byte
	err    error

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

func newPipeStream(rc io.ReadCloser, cmd *exec.Cmd) *pipeStream {
	s := &pipeStream{
		cmd:   cmd,
		rc:    rc,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *pipeStream) read() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.rc)
	scanner.Buffer(make([]byte, 0, 512<<10), maxFrameSize)
	scanner.Split(splitJPEG)
	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
		s.readyOnce.Do(func() { close(s.ready) })
	}

	s.mu.Lock()
	s.err = scanner.Err()
	if s.err == nil {
		s.err = io.EOF
	}
	s.mu.Unlock()
}

func (s *pipeStream) readErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Frame decodes the most recent frame
func (s *pipeStream) Frame() (image.Image, error) {
	s.mu.Lock()
	frame := s.latest
	err := s.err
	s.mu.Unlock()

	if frame == nil {
		if err != nil {
			return nil, fmt.Errorf("no frame available: %w", err)
		}
		return nil, fmt.Errorf("no frame available")
	}
	img, decodeErr := imaging.Decode(bytes.NewReader(frame))
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding frame: %w", decodeErr)
	}
	return img, nil
}

// Close stops the reader and the subprocess
func (s *pipeStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		err = s.rc.Close()
		<-s.done
		if s.cmd != nil {
			s.cmd.Wait()
		}
	})
	return err
}

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images from an MJPEG stream
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF in case it begins a marker
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// Drop anything before the frame and wait for more data
		return start, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}
