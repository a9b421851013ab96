package manual

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStore_SeedsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmp", "target_face.txt")

	s, err := NewFileStore(path, "1", 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if id, _ := s.Read(); id != "1" {
		t.Errorf("Read = %q, want seeded default 1", id)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("target file not created: %v", err)
	}
	if string(data) != "1\n" {
		t.Errorf("file content = %q, want %q", data, "1\n")
	}
}

func TestFileStore_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target_face.txt")
	if err := os.WriteFile(path, []byte("  4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path, "1", 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if id, _ := s.Read(); id != "4" {
		t.Errorf("Read = %q, want trimmed existing value 4", id)
	}
}

func TestFileStore_WriteUpdatesFileAndCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target_face.txt")
	s, err := NewFileStore(path, "1", 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := s.Write("7"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if id, _ := s.Read(); id != "7" {
		t.Errorf("Read = %q, want 7", id)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "7\n" {
		t.Errorf("file content = %q, want %q", data, "7\n")
	}

	if err := s.Write("  "); err == nil {
		t.Error("Write accepted a blank id")
	}
}

func TestFileStore_WatchSeesExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target_face.txt")
	s, err := NewFileStore(path, "1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Someone else rewrites the file behind our back.
	if err := os.WriteFile(path, []byte("9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if id, _ := s.Read(); id == "9" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher never picked up the external write")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
}

func TestStatic_ReadAndSet(t *testing.T) {
	s := NewStatic("1")
	if id, err := s.Read(); err != nil || id != "1" {
		t.Errorf("Read = %q, %v", id, err)
	}
	s.Set("5")
	if id, _ := s.Read(); id != "5" {
		t.Errorf("Read after Set = %q, want 5", id)
	}
}
