package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu        sync.Mutex
	transform *Transform
	err       error
	calls     []int64
	closed    bool
}

// NewMockDetector creates a new MockDetector that detects no face.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetTransform sets the transform returned by Detect. nil means no face.
func (m *MockDetector) SetTransform(t *Transform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transform = t
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured transform or error.
func (m *MockDetector) Detect(frame *gocv.Mat, timestampMs int64) (*Transform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, timestampMs)
	if m.err != nil {
		return nil, m.err
	}
	if m.transform == nil {
		return nil, nil
	}
	t := *m.transform
	return &t, nil
}

// Calls returns the timestamps Detect was called with.
func (m *MockDetector) Calls() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.calls))
	copy(out, m.calls)
	return out
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// FrontalFace returns a head transform roughly 50 units in front of the camera,
// facing it.
func FrontalFace() Transform {
	return Translation(0, 0, -50)
}
