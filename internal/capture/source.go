package capture

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrSourceClosed is returned by Next after the source has been closed.
var ErrSourceClosed = errors.New("frame source closed")

// Frame is a captured video frame with its capture timestamp.
type Frame struct {
	Mat *gocv.Mat
	// TimestampMs is milliseconds since the source started. It strictly
	// increases from frame to frame.
	TimestampMs int64
	Seq         uint64
}

// Close releases the frame's image.
func (f *Frame) Close() {
	if f != nil && f.Mat != nil {
		f.Mat.Close()
		f.Mat = nil
	}
}

// SourceStats holds frame source counters.
type SourceStats struct {
	Published uint64
	Consumed  uint64
	// Dropped counts frames replaced before a consumer took them.
	Dropped    uint64
	ReadErrors uint64
}

// FrameSource reads frames from a camera and hands them to a single consumer
// through a one-slot mailbox: a new frame replaces one that was not taken yet.
type FrameSource struct {
	camera Camera
	fps    int

	mu     sync.Mutex
	slot   *Frame
	seq    uint64
	lastTs int64
	start  time.Time
	stats  SourceStats
	closed bool

	ready chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewFrameSource creates a FrameSource. fps <= 0 uses the camera's FPS.
func NewFrameSource(camera Camera, fps int) *FrameSource {
	if fps <= 0 && camera != nil {
		fps = camera.FPS()
	}
	if fps <= 0 {
		fps = DefaultFPS
	}

	return &FrameSource{
		camera: camera,
		fps:    fps,
		start:  time.Now(),
		lastTs: -1,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Run reads frames until ctx is done or the source is closed. The camera must
// already be open.
func (s *FrameSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
			mat, err := s.camera.ReadFrame()
			if err != nil {
				s.mu.Lock()
				s.stats.ReadErrors++
				n := s.stats.ReadErrors
				s.mu.Unlock()
				if n == 1 || n%100 == 0 {
					log.Printf("Error reading frame (%d so far): %v", n, err)
				}
				continue
			}
			s.Publish(mat, time.Since(s.start).Milliseconds())
		}
	}
}

// Publish puts a frame into the mailbox, never blocking. Timestamps that do
// not increase are bumped to one past the previous frame. The source takes
// ownership of mat.
func (s *FrameSource) Publish(mat *gocv.Mat, timestampMs int64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if mat != nil {
			mat.Close()
		}
		return
	}

	if timestampMs <= s.lastTs {
		timestampMs = s.lastTs + 1
	}
	s.lastTs = timestampMs
	s.seq++

	if s.slot != nil {
		s.slot.Close()
		s.stats.Dropped++
	}
	s.slot = &Frame{Mat: mat, TimestampMs: timestampMs, Seq: s.seq}
	s.stats.Published++
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Ready signals that a frame may be waiting. Use TryNext to take it.
func (s *FrameSource) Ready() <-chan struct{} {
	return s.ready
}

// TryNext takes the waiting frame, or returns nil. The caller owns the frame.
func (s *FrameSource) TryNext() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.slot
	s.slot = nil
	if f != nil {
		s.stats.Consumed++
	}
	return f
}

// Next blocks until a frame is available, ctx is done, or the source closes.
func (s *FrameSource) Next(ctx context.Context) (*Frame, error) {
	for {
		if f := s.TryNext(); f != nil {
			return f, nil
		}

		select {
		case <-s.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			return nil, ErrSourceClosed
		}
	}
}

// Stats returns a snapshot of the counters.
func (s *FrameSource) Stats() SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Done is closed when the source is closed.
func (s *FrameSource) Done() <-chan struct{} {
	return s.done
}

// Close stops Run and releases any waiting frame. It does not close the camera.
func (s *FrameSource) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.slot != nil {
			s.slot.Close()
			s.slot = nil
		}
		s.mu.Unlock()
		close(s.done)
	})
}
