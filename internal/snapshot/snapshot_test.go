package snapshot

import (
	"context"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(t.TempDir(), "postgres://unused", 30)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return s
}

func seedSidecar(t *testing.T, s *Service, filename string, createdAt time.Time) {
	t.Helper()
	if err := s.writeSidecar(Metadata{
		Filename:    filename,
		CreatedAt:   createdAt,
		Description: "seed",
		SizeBytes:   42,
	}); err != nil {
		t.Fatalf("writeSidecar(%s) error = %v", filename, err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := newTestService(t)
	now := time.Now().UTC()

	seedSidecar(t, s, "backup_20260101_000000.db", now.Add(-48*time.Hour))
	seedSidecar(t, s, "backup_20260103_000000.db", now)
	seedSidecar(t, s, "backup_20260102_000000.db", now.Add(-24*time.Hour))

	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(got))
	}
	if got[0].Filename != "backup_20260103_000000.db" || got[2].Filename != "backup_20260101_000000.db" {
		t.Errorf("List() order = %v, want newest-first", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	s := newTestService(t)
	if _, err := s.find("does_not_exist.db"); err != ErrNotFound {
		t.Errorf("find() error = %v, want ErrNotFound", err)
	}
}

func TestDelete_RemovesFileAndSidecar(t *testing.T) {
	s := newTestService(t)
	seedSidecar(t, s, "backup_20260101_000000.db", time.Now().UTC())

	if err := s.Delete(context.Background(), "backup_20260101_000000.db"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := s.find("backup_20260101_000000.db"); err != ErrNotFound {
		t.Errorf("find() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestCleanup_DeletesOnlyExpired(t *testing.T) {
	s := newTestService(t)
	now := time.Now().UTC()

	seedSidecar(t, s, "backup_old.db", now.Add(-60*24*time.Hour))
	seedSidecar(t, s, "backup_recent.db", now.Add(-1*time.Hour))

	deleted, err := s.Cleanup(context.Background(), 30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Cleanup() deleted = %d, want 1", deleted)
	}

	remaining, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].Filename != "backup_recent.db" {
		t.Errorf("remaining snapshots = %v, want only backup_recent.db", remaining)
	}
}
