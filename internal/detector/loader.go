package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDetectorNotReady is returned while the pose source is still initializing.
	ErrDetectorNotReady = errors.New("detector not ready")
	// ErrDetectorFailed is returned once initialization has failed for this session.
	ErrDetectorFailed = errors.New("detector initialization failed")
	// ErrDetectorClosed is returned by a detector used after Close.
	ErrDetectorClosed = errors.New("detector closed")
)

// State is the initialization state of a Loader.
type State int

const (
	StatePending State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InitFunc creates a Detector. It may block for a long time.
type InitFunc func(ctx context.Context) (Detector, error)

// Loader runs a one-time asynchronous detector initialization. It is pending
// immediately after construction and moves exactly once to ready or failed.
// A failed initialization is not retried.
type Loader struct {
	init InitFunc
	once sync.Once
	done chan struct{}

	mu    sync.RWMutex
	state State
	det   Detector
	err   error
}

// NewLoader creates a pending Loader for the given init function.
func NewLoader(init InitFunc) *Loader {
	return &Loader{
		init: init,
		done: make(chan struct{}),
	}
}

// ReadyLoader returns a Loader that is already ready with d.
func ReadyLoader(d Detector) *Loader {
	l := NewLoader(func(context.Context) (Detector, error) { return d, nil })
	l.resolve(d, nil)
	l.once.Do(func() {})
	return l
}

// Start begins initialization in a new goroutine. Later calls are no-ops.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		go func() {
			d, err := l.init(ctx)
			l.resolve(d, err)
		}()
	})
}

func (l *Loader) resolve(d Detector, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StatePending {
		return
	}

	if err == nil && d == nil {
		err = errors.New("init returned no detector")
	}
	if err != nil {
		l.state = StateFailed
		l.err = err
	} else {
		l.state = StateReady
		l.det = d
	}
	close(l.done)
}

// State returns the current initialization state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Detector returns the detector once ready.
func (l *Loader) Detector() (Detector, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case StateReady:
		return l.det, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %v", ErrDetectorFailed, l.err)
	default:
		return nil, ErrDetectorNotReady
	}
}

// Err returns the initialization error, if any.
func (l *Loader) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Done is closed when initialization has resolved.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until initialization resolves or ctx is done.
func (l *Loader) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		_, err := l.Detector()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the detector if initialization succeeded.
func (l *Loader) Close() error {
	l.mu.RLock()
	d := l.det
	l.mu.RUnlock()

	if d == nil {
		return nil
	}
	return d.Close()
}
