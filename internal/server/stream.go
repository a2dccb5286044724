package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// StreamHandler serves the most recent webcam frame as an MJPEG stream. The
// app loop feeds it with Update so the stream never competes with the face
// detector for camera reads.
type StreamHandler struct {
	interval time.Duration
	viewers  atomic.Int32

	mu   sync.RWMutex
	jpeg []byte
	seq  uint64
}

// NewStreamHandler creates a StreamHandler sending at most fps frames per second.
func NewStreamHandler(fps int) *StreamHandler {
	if fps <= 0 {
		fps = 15
	}
	return &StreamHandler{interval: time.Second / time.Duration(fps)}
}

// Viewers returns the number of connected stream clients.
func (h *StreamHandler) Viewers() int {
	return int(h.viewers.Load())
}

// Update encodes frame as the current stream image. It is a no-op while
// nobody is watching.
func (h *StreamHandler) Update(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() || h.Viewers() == 0 {
		return nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	h.SetJPEG(buf.GetBytes())
	return nil
}

// SetJPEG replaces the current stream image with an encoded JPEG.
func (h *StreamHandler) SetJPEG(data []byte) {
	img := make([]byte, len(data))
	copy(img, data)

	h.mu.Lock()
	h.jpeg = img
	h.seq++
	h.mu.Unlock()
}

func (h *StreamHandler) current() ([]byte, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.jpeg, h.seq
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.viewers.Add(1)
	defer h.viewers.Add(-1)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var sent uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		img, seq := h.current()
		if img == nil || seq == sent {
			continue
		}
		sent = seq

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(img))
		if _, err := w.Write(img); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
