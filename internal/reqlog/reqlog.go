// Package reqlog implements the RequestRecord sink (spec §3 RequestRecord,
// §4.3 step 7): one row per completed HTTP call, used by StatsSvc for
// operational aggregates. Mirrors internal/audit's async buffered writer
// shape since both are high-frequency, best-effort, drop-on-overload sinks.
package reqlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/freightplan/planningserver/internal/httpserver"
	"github.com/freightplan/planningserver/internal/store"
)

const (
	bufferSize    = 512
	flushInterval = 2 * time.Second
	flushBatch    = 64
)

// Writer buffers RequestRecord rows and flushes them in batches, never
// blocking the request path (spec §4.3: recording is incidental to the
// pipeline, not on its critical path).
type Writer struct {
	db      store.DBTX
	logger  *slog.Logger
	entries chan httpserver.RequestRecord
	wg      sync.WaitGroup
}

// NewWriter creates a request-log Writer. Call Start to begin flushing.
func NewWriter(db store.DBTX, logger *slog.Logger) *Writer {
	return &Writer{
		db:      db,
		logger:  logger,
		entries: make(chan httpserver.RequestRecord, bufferSize),
	}
}

// Start launches the background goroutine that flushes records to the
// database and returns immediately; the goroutine exits once the context is
// cancelled or Close is called, after flushing pending records.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending records to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// RecordRequest satisfies httpserver.RequestRecorder. Drops the record on a
// full buffer rather than block the response path.
func (w *Writer) RecordRequest(rec httpserver.RequestRecord) {
	select {
	case w.entries <- rec:
	default:
		w.logger.Warn("request log buffer full, dropping record", "path", rec.Path)
	}
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]httpserver.RequestRecord, 0, flushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case rec, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) flush(batch []httpserver.RequestRecord) {
	ctx := context.Background()
	for _, rec := range batch {
		_, err := w.db.Exec(ctx, `
			INSERT INTO request_log (method, path, query, username, client_ip, status_code, response_time_ms, error, created_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9)`,
			rec.Method, rec.Path, rec.Query, rec.Username, rec.ClientIP, rec.StatusCode,
			rec.ResponseMS, rec.Error, rec.CreatedAt,
		)
		if err != nil {
			w.logger.Error("inserting request log row", "error", err)
		}
	}
}
