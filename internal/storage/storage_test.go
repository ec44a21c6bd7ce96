package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestUniquePath(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	a := s.UniquePath("reel", "mp4")
	b := s.UniquePath("reel", "mp4")

	if a == b {
		t.Error("two calls returned the same path")
	}
	base := filepath.Base(a)
	if !strings.HasPrefix(base, "reel_") || !strings.HasSuffix(base, ".mp4") {
		t.Errorf("unexpected path shape %q", base)
	}
	if filepath.Dir(a) != s.Dir {
		t.Errorf("path %q is outside the artifacts dir", a)
	}
}

func TestSaveUpload(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, err := s.SaveUpload(strings.NewReader("image bytes"), "profile", "png")
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved upload: %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestResolve(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	name := filepath.Base(s.UniquePath("reel", "mp4"))
	if err := os.WriteFile(filepath.Join(s.Dir, name), []byte("v"), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := s.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve failed for existing artifact: %v", err)
	}
	if filepath.Dir(path) != s.Dir {
		t.Errorf("resolved path %q escapes artifacts dir", path)
	}

	for _, bad := range []string{
		"",
		"../etc/passwd",
		"sub/video.mp4",
		".hidden",
		"/etc/passwd",
	} {
		if _, err := s.Resolve(bad); err == nil {
			t.Errorf("Resolve(%q) should fail", bad)
		}
	}

	if _, err := s.Resolve("missing.mp4"); err == nil {
		t.Error("Resolve should fail for a nonexistent artifact")
	}
}

func TestFileURL(t *testing.T) {
	s := &Storage{Dir: "/data/artifacts"}
	if got := s.FileURL("/data/artifacts/reel_abc.mp4"); got != "/files/reel_abc.mp4" {
		t.Errorf("unexpected URL %q", got)
	}
}

func TestSweep(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	oldPath := filepath.Join(s.Dir, "old.mp4")
	newPath := filepath.Join(s.Dir, "new.mp4")
	for _, p := range []string{oldPath, newPath} {
		if err := os.WriteFile(p, []byte("v"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Sweep(24 * time.Hour)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("stale artifact should be gone")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("fresh artifact should survive")
	}
}

func TestSweepDisabled(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path := filepath.Join(s.Dir, "keep.mp4")
	if err := os.WriteFile(path, []byte("v"), 0644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-240 * time.Hour)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Sweep(0)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("disabled sweep removed %d files", removed)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("artifact should survive a disabled sweep")
	}
}
