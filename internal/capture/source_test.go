package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestFrameSource_Mailbox(t *testing.T) {
	s := NewFrameSource(nil, 30)
	defer s.Close()

	if f := s.TryNext(); f != nil {
		t.Fatal("expected empty mailbox")
	}

	s.Publish(nil, 10)
	s.Publish(nil, 20)

	f := s.TryNext()
	if f == nil {
		t.Fatal("expected a frame")
	}
	if f.TimestampMs != 20 || f.Seq != 2 {
		t.Errorf("frame = ts %d seq %d, want latest (20, 2)", f.TimestampMs, f.Seq)
	}
	if s.TryNext() != nil {
		t.Error("mailbox should be empty after take")
	}

	stats := s.Stats()
	if stats.Published != 2 || stats.Dropped != 1 || stats.Consumed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFrameSource_TimestampsIncrease(t *testing.T) {
	s := NewFrameSource(nil, 30)
	defer s.Close()

	var got []int64
	for _, ts := range []int64{5, 5, 3, 40} {
		s.Publish(nil, ts)
		got = append(got, s.TryNext().TimestampMs)
	}

	want := []int64{5, 6, 7, 40}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("timestamps = %v, want %v", got, want)
			break
		}
	}
}

func TestFrameSource_NextBlocks(t *testing.T) {
	s := NewFrameSource(nil, 30)
	defer s.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Publish(nil, 100)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	f, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if f.TimestampMs != 100 {
		t.Errorf("ts = %d, want 100", f.TimestampMs)
	}
}

func TestFrameSource_NextAfterClose(t *testing.T) {
	s := NewFrameSource(nil, 30)
	s.Close()
	s.Close()

	if _, err := s.Next(context.Background()); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("Next() error = %v, want ErrSourceClosed", err)
	}

	s.Publish(nil, 1)
	if s.TryNext() != nil {
		t.Error("closed source must not accept frames")
	}
}

func TestFrameSource_NextContext(t *testing.T) {
	s := NewFrameSource(nil, 30)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want deadline exceeded", err)
	}
}

func TestFrameSource_Run(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer mat.Close()

	cam := NewMockCamera([]*gocv.Mat{&mat}, true)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	s := NewFrameSource(cam, 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go s.Run(ctx)

	var last int64 = -1
	for i := 0; i < 3; i++ {
		f, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if f.TimestampMs <= last {
			t.Errorf("timestamp %d not after %d", f.TimestampMs, last)
		}
		last = f.TimestampMs
		f.Close()
	}

	s.Close()
}
