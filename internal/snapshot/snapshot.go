// Package snapshot implements SnapshotSvc (spec §4.7): point-in-time
// copies of the live store with a metadata sidecar, list/restore/delete,
// and retention cleanup. The spec describes copying "the live database
// file"; this module backs its store with Postgres rather than a literal
// file, so create/restore shell out to pg_dump/pg_restore (the standard
// Postgres backup tool, invoked the way an ops runbook would) against
// PLANNING_DATABASE_URL, producing a real file under the configured backup
// directory plus the sidecar JSON the spec names.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/freightplan/planningserver/internal/telemetry"
)

const filenameLayout = "20060102_150405"

// Metadata is the JSON sidecar written next to every snapshot file
// (spec §4.7: "{filename, created_at, description, size_bytes}").
type Metadata struct {
	Filename    string    `json:"filename"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
	SizeBytes   int64     `json:"size_bytes"`
}

// Service creates, lists, restores, and cleans up snapshots.
type Service struct {
	dir         string
	databaseURL string
	retention   time.Duration
}

// NewService creates a snapshot Service. dir is created if missing.
func NewService(dir, databaseURL string, retentionDays int) (*Service, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	return &Service{
		dir:         dir,
		databaseURL: databaseURL,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
	}, nil
}

func sidecarPath(dumpPath string) string {
	return dumpPath + ".json"
}

// Create dumps the live database to a new snapshot file and writes its
// sidecar metadata (spec §4.7 create).
func (s *Service) Create(ctx context.Context, description string) (Metadata, error) {
	now := time.Now().UTC()
	filename := fmt.Sprintf("backup_%s.db", now.Format(filenameLayout))
	dumpPath := filepath.Join(s.dir, filename)

	cmd := exec.CommandContext(ctx, "pg_dump", "--format=custom", "--file="+dumpPath, s.databaseURL)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Metadata{}, fmt.Errorf("pg_dump failed: %w: %s", err, stderr.String())
	}

	info, err := os.Stat(dumpPath)
	if err != nil {
		return Metadata{}, fmt.Errorf("statting snapshot file: %w", err)
	}

	meta := Metadata{Filename: filename, CreatedAt: now, Description: description, SizeBytes: info.Size()}
	if err := s.writeSidecar(meta); err != nil {
		return Metadata{}, err
	}
	telemetry.SnapshotsCreatedTotal.Inc()
	return meta, nil
}

func (s *Service) writeSidecar(meta Metadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot metadata: %w", err)
	}
	if err := os.WriteFile(sidecarPath(filepath.Join(s.dir, meta.Filename)), b, 0o640); err != nil {
		return fmt.Errorf("writing snapshot sidecar: %w", err)
	}
	return nil
}

// List returns every snapshot's metadata, newest first (spec §4.7 list).
func (s *Service) List(ctx context.Context) ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []Metadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading sidecar %s: %w", e.Name(), err)
		}
		var meta Metadata
		if err := json.Unmarshal(b, &meta); err != nil {
			return nil, fmt.Errorf("parsing sidecar %s: %w", e.Name(), err)
		}
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ErrNotFound is returned when a named snapshot does not exist.
var ErrNotFound = fmt.Errorf("snapshot not found")

func (s *Service) find(filename string) (Metadata, error) {
	all, err := s.List(context.Background())
	if err != nil {
		return Metadata{}, err
	}
	for _, m := range all {
		if m.Filename == filename {
			return m, nil
		}
	}
	return Metadata{}, ErrNotFound
}

// Restore makes a pre_restore_<ts> safety copy of the live database, then
// restores filename over the live database (spec §4.7 restore). The
// caller is responsible for restarting the server afterward, per the
// spec's "server restart is the client's responsibility".
func (s *Service) Restore(ctx context.Context, filename string) (safetyFilename string, err error) {
	if _, err := s.find(filename); err != nil {
		return "", err
	}

	safety, err := s.Create(ctx, "pre_restore safety copy")
	if err != nil {
		return "", fmt.Errorf("creating pre-restore safety copy: %w", err)
	}
	safetyFilename = strings.Replace(safety.Filename, "backup_", "pre_restore_", 1)
	if err := os.Rename(filepath.Join(s.dir, safety.Filename), filepath.Join(s.dir, safetyFilename)); err != nil {
		return "", fmt.Errorf("renaming safety copy: %w", err)
	}
	if err := os.Rename(sidecarPath(filepath.Join(s.dir, safety.Filename)), sidecarPath(filepath.Join(s.dir, safetyFilename))); err != nil {
		return "", fmt.Errorf("renaming safety copy sidecar: %w", err)
	}

	restorePath := filepath.Join(s.dir, filename)
	cmd := exec.CommandContext(ctx, "pg_restore", "--clean", "--if-exists", "--dbname="+s.databaseURL, restorePath)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return safetyFilename, fmt.Errorf("pg_restore failed: %w: %s", err, stderr.String())
	}

	return safetyFilename, nil
}

// Delete removes a snapshot and its sidecar (spec §4.7 delete).
func (s *Service) Delete(ctx context.Context, filename string) error {
	if _, err := s.find(filename); err != nil {
		return err
	}
	path := filepath.Join(s.dir, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot file: %w", err)
	}
	if err := os.Remove(sidecarPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot sidecar: %w", err)
	}
	return nil
}

// Cleanup deletes snapshots older than retentionDays (spec §4.7 cleanup,
// and the scheduler's nightly retention sweep per spec §4.6).
func (s *Service) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	all, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	var deleted int
	for _, m := range all {
		if m.CreatedAt.Before(cutoff) {
			if err := s.Delete(ctx, m.Filename); err != nil {
				return deleted, fmt.Errorf("deleting expired snapshot %s: %w", m.Filename, err)
			}
			deleted++
		}
	}
	return deleted, nil
}
