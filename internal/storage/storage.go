package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Local artifact storage
//
// Rendered videos, narration audio, and uploaded profile images live in one
// flat directory under randomly unique names. Retention is an explicit
// collaborator: a background sweeper prunes files older than a configured
// age so artifacts never accumulate unbounded.
// ---------------------------------------------------------------------------

type Storage struct {
	Dir string
}

func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts dir: %w", err)
	}
	return &Storage{Dir: dir}, nil
}

// UniquePath returns a collision-free path in the artifacts directory,
// named <prefix>_<uuid>.<ext>.
func (s *Storage) UniquePath(prefix, ext string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s.%s", prefix, uuid.New(), ext))
}

// SaveUpload writes an uploaded file (e.g. a profile picture) to a unique
// path and returns it.
func (s *Storage) SaveUpload(r io.Reader, prefix, ext string) (string, error) {
	path := s.UniquePath(prefix, ext)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return path, nil
}

// Resolve maps a bare artifact filename to its on-disk path, rejecting
// anything that would escape the artifacts directory.
func (s *Storage) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	path := filepath.Join(s.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("artifact not found: %w", err)
	}

	return path, nil
}

// FileURL returns the serving URL for an artifact path.
func (s *Storage) FileURL(path string) string {
	return "/files/" + filepath.Base(path)
}

// Sweep removes artifacts older than maxAge and returns how many were
// deleted. A maxAge of 0 disables pruning.
func (s *Storage) Sweep(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read artifacts dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.Dir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	return removed, nil
}

// StartRetention runs the sweep on an interval until the context ends.
func (s *Storage) StartRetention(ctx context.Context, interval, maxAge time.Duration) {
	if maxAge <= 0 {
		log.Printf("[Storage] Retention disabled, artifacts kept indefinitely")
		return
	}

	log.Printf("[Storage] Retention sweeper started (every %v, max age %v)", interval, maxAge)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(maxAge)
			if err != nil {
				log.Printf("[Storage] Sweep failed: %v", err)
			} else if removed > 0 {
				log.Printf("[Storage] Pruned %d expired artifacts", removed)
			}
		}
	}
}
