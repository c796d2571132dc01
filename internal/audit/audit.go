// Package audit implements the append-only AuditLog (spec §3 AuditRecord,
// §4.4 AuditLog): every authenticated mutation and every session-lifecycle
// event is recorded, queryable by username, action, and time window.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/store"
)

// Action is one of the closed set of action names spec §3 enumerates.
type Action string

const (
	ActionLogin           Action = "LOGIN"
	ActionLoginFailed     Action = "LOGIN_FAILED"
	ActionLogout          Action = "LOGOUT"
	ActionPasswordChanged Action = "PASSWORD_CHANGED"
	ActionPasswordReset   Action = "PASSWORD_RESET"
	ActionForceDisconnect Action = "FORCE_DISCONNECT"
	ActionCreate          Action = "CREATE"
	ActionUpdate          Action = "UPDATE"
	ActionDelete          Action = "DELETE"
	ActionDeactivate      Action = "DEACTIVATE"
	ActionBulkCreate      Action = "BULK_CREATE"
	ActionBackupCreate    Action = "BACKUP_CREATE"
	ActionBackupRestore   Action = "BACKUP_RESTORE"
	ActionSessionKick     Action = "SESSION_KICK"
	ActionSessionKickAll  Action = "SESSION_KICK_ALL"
)

// Entry is a single audit log entry to be written (spec §3 AuditRecord).
type Entry struct {
	Username   string
	SessionRef *string
	Action     Action
	EntityKind *string
	EntityID   *int64
	Before     json.RawMessage
	After      json.RawMessage
	ClientIP   *string
}

// Record is a persisted AuditRecord, as returned by query methods.
type Record struct {
	ID         int64
	Username   string
	SessionRef *string
	Action     Action
	EntityKind *string
	EntityID   *int64
	Before     json.RawMessage
	After      json.RawMessage
	ClientIP   *string
	CreatedAt  time.Time
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine in batches, so a
// slow audit write never stalls the request pipeline (spec §4.3 step 5).
type Writer struct {
	db      store.DBTX
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(db store.DBTX, logger *slog.Logger) *Writer {
	return &Writer{
		db:      db,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start launches the background goroutine that flushes audit entries to the
// database and returns immediately. The goroutine exits once the context is
// cancelled (or Close is called) and the entries still queued are flushed.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry for async writing. It never blocks the
// caller; if the buffer is full the entry is dropped and a warning logged.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"action", entry.Action, "entity_kind", entry.EntityKind)
	}
}

// LogFromRequest extracts identity and client IP from the request context
// and enqueues the entry (spec §4.3 step 5's usual call site).
func (w *Writer) LogFromRequest(r *http.Request, action Action, entityKind string, entityID *int64, before, after any) {
	entry := Entry{
		Action:     action,
		EntityKind: &entityKind,
		EntityID:   entityID,
	}

	if id := auth.FromContext(r.Context()); id != nil {
		entry.Username = id.Username
		entry.SessionRef = &id.SessionID
	}

	ip := clientIP(r)
	if ip.IsValid() {
		s := ip.String()
		entry.ClientIP = &s
	}

	if before != nil {
		if raw, err := json.Marshal(before); err == nil {
			entry.Before = raw
		}
	}
	if after != nil {
		if raw, err := json.Marshal(after); err == nil {
			entry.After = raw
		}
	}

	w.Log(entry)
}

// run is the background loop that drains the entries channel.
func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of entries to the database.
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		_, err := w.db.Exec(ctx, `
			INSERT INTO audit_log (username, session_ref, action, entity_kind, entity_id, before, after, client_ip, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
			e.Username, e.SessionRef, e.Action, e.EntityKind, e.EntityID, e.Before, e.After, e.ClientIP,
		)
		if err != nil {
			w.logger.Error("writing audit log entry", "error", err, "action", e.Action)
		}
	}
}

// clientIP extracts the client IP address from the request, preferring
// X-Forwarded-For and X-Real-IP headers over RemoteAddr.
func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
