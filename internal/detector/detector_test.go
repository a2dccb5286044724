package detector

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func TestTransform_Mul(t *testing.T) {
	t.Run("identity is neutral", func(t *testing.T) {
		m := Translation(1, 2, 3).Mul(Scale(2, 3, 4))

		if got := Identity().Mul(m); got != m {
			t.Errorf("I*m = %v, want %v", got, m)
		}
		if got := m.Mul(Identity()); got != m {
			t.Errorf("m*I = %v, want %v", got, m)
		}
	})

	t.Run("translation then scale keeps position", func(t *testing.T) {
		m := Translation(1, 2, 3).Mul(Scale(0.8, 0.9, 1.0))

		pos := m.Position()
		if pos.X != 1 || pos.Y != 2 || pos.Z != 3 {
			t.Errorf("position = %v, want (1, 2, 3)", pos)
		}
		if math.Abs(m.At(0, 0)-0.8) > epsilon || math.Abs(m.At(1, 1)-0.9) > epsilon || math.Abs(m.At(2, 2)-1.0) > epsilon {
			t.Errorf("diagonal = (%f, %f, %f), want (0.8, 0.9, 1.0)", m.At(0, 0), m.At(1, 1), m.At(2, 2))
		}
	})

	t.Run("scale then translation scales position", func(t *testing.T) {
		m := Scale(2, 2, 2).Mul(Translation(1, 2, 3))

		pos := m.Position()
		if pos.X != 2 || pos.Y != 4 || pos.Z != 6 {
			t.Errorf("position = %v, want (2, 4, 6)", pos)
		}
	})
}

func TestFromSlice(t *testing.T) {
	id := Identity()
	got, ok := FromSlice(id[:])
	if !ok || got != id {
		t.Errorf("FromSlice(identity) = %v, %v", got, ok)
	}

	if _, ok := FromSlice([]float64{1, 2, 3}); ok {
		t.Error("expected FromSlice to reject short input")
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("no face", func(t *testing.T) {
		tr, err := parseResponse([]byte(`{"facialTransformationMatrixes": []}` + "\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr != nil {
			t.Errorf("expected nil transform, got %v", tr)
		}
	})

	t.Run("first face is used", func(t *testing.T) {
		line := `{"facialTransformationMatrixes": [` +
			`[1,0,0,0, 0,1,0,0, 0,0,1,0, 4,5,-40,1],` +
			`[1,0,0,0, 0,1,0,0, 0,0,1,0, 9,9,9,1]]}`
		tr, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr == nil {
			t.Fatal("expected transform")
		}
		if pos := tr.Position(); pos.X != 4 || pos.Y != 5 || pos.Z != -40 {
			t.Errorf("position = %v, want (4, 5, -40)", pos)
		}
	})

	t.Run("short matrix", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"facialTransformationMatrixes": [[1,2]]}`)); err == nil {
			t.Error("expected error for short matrix")
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"error": "bad frame"}`)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parseResponse([]byte(`not json`)); err == nil {
			t.Error("expected error")
		}
	})
}

func TestParseReady(t *testing.T) {
	if err := parseReady([]byte(`{"ready": true}`)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := parseReady([]byte(`{"ready": false, "error": "no model"}`)); err == nil {
		t.Error("expected error for not ready")
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns no face by default", func(t *testing.T) {
		mock := NewMockDetector()

		tr, err := mock.Detect(nil, 0)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if tr != nil {
			t.Errorf("expected nil transform, got %v", tr)
		}
	})

	t.Run("returns configured transform", func(t *testing.T) {
		mock := NewMockDetector()
		face := FrontalFace()
		mock.SetTransform(&face)

		tr, err := mock.Detect(nil, 16)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if tr == nil || *tr != face {
			t.Errorf("expected %v, got %v", face, tr)
		}
		if calls := mock.Calls(); len(calls) != 1 || calls[0] != 16 {
			t.Errorf("calls = %v, want [16]", calls)
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		tr, err := mock.Detect(nil, 0)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if tr != nil {
			t.Errorf("expected nil transform when error is set, got %v", tr)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestLoader(t *testing.T) {
	t.Run("pending before start", func(t *testing.T) {
		l := NewLoader(func(context.Context) (Detector, error) {
			return NewMockDetector(), nil
		})

		if l.State() != StatePending {
			t.Errorf("state = %v, want pending", l.State())
		}
		if _, err := l.Detector(); !errors.Is(err, ErrDetectorNotReady) {
			t.Errorf("err = %v, want ErrDetectorNotReady", err)
		}
	})

	t.Run("becomes ready", func(t *testing.T) {
		mock := NewMockDetector()
		release := make(chan struct{})
		l := NewLoader(func(context.Context) (Detector, error) {
			<-release
			return mock, nil
		})
		l.Start(context.Background())

		if l.State() != StatePending {
			t.Errorf("state = %v, want pending while init blocks", l.State())
		}
		close(release)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		if l.State() != StateReady {
			t.Errorf("state = %v, want ready", l.State())
		}
		d, err := l.Detector()
		if err != nil || d != mock {
			t.Errorf("Detector() = %v, %v", d, err)
		}

		if err := l.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if !mock.Closed() {
			t.Error("expected detector to be closed")
		}
	})

	t.Run("failure is permanent", func(t *testing.T) {
		calls := 0
		initErr := errors.New("model missing")
		l := NewLoader(func(context.Context) (Detector, error) {
			calls++
			return nil, initErr
		})
		l.Start(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err := l.Wait(ctx)
		if !errors.Is(err, ErrDetectorFailed) {
			t.Fatalf("Wait() error = %v, want ErrDetectorFailed", err)
		}

		l.Start(context.Background())
		<-l.Done()

		if calls != 1 {
			t.Errorf("init called %d times, want 1", calls)
		}
		if l.State() != StateFailed {
			t.Errorf("state = %v, want failed", l.State())
		}
		if !errors.Is(l.Err(), initErr) {
			t.Errorf("Err() = %v, want %v", l.Err(), initErr)
		}
		if err := l.Close(); err != nil {
			t.Errorf("Close() on failed loader error = %v", err)
		}
	})

	t.Run("wait respects context", func(t *testing.T) {
		l := NewLoader(func(ctx context.Context) (Detector, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() error = %v, want deadline exceeded", err)
		}
	})

	t.Run("ready loader", func(t *testing.T) {
		mock := NewMockDetector()
		l := ReadyLoader(mock)
		l.Start(context.Background())

		if l.State() != StateReady {
			t.Errorf("state = %v, want ready", l.State())
		}
		if d, _ := l.Detector(); d != mock {
			t.Error("expected the given detector")
		}
	})
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StatePending: "pending",
		StateReady:   "ready",
		StateFailed:  "failed",
		State(9):     "State(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
