package reqlog

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/freightplan/planningserver/internal/httpserver"
)

func TestRecordRequest_DropsWhenFull(t *testing.T) {
	w := NewWriter(nil, slog.Default())
	// Don't start the background goroutine — nothing drains the channel.

	for i := 0; i < bufferSize; i++ {
		w.RecordRequest(httpserver.RequestRecord{Path: "/api/v1/missions"})
	}

	// The next record should be dropped (non-blocking).
	w.RecordRequest(httpserver.RequestRecord{Path: "/api/v1/routes"})

	if len(w.entries) != bufferSize {
		t.Errorf("buffer size = %d, want %d", len(w.entries), bufferSize)
	}
}

func TestClose_FlushesWithoutBlockingOnEmptyBuffer(t *testing.T) {
	w := NewWriter(nil, slog.Default())
	w.Start(context.Background())

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return promptly on an empty writer")
	}
}
