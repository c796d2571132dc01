package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_BuildsValidCronSpecs(t *testing.T) {
	// authSvc/snapshots are only dereferenced once a job actually fires;
	// construction and start/stop never invoke them.
	s, err := New(nil, nil, 2, 30, time.Minute, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s == nil {
		t.Fatal("New() returned nil scheduler")
	}
}

func TestStartStop_ReturnsPromptly(t *testing.T) {
	s, err := New(nil, nil, 2, 30, 24*time.Hour, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Stop(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}
}
