package shm

import (
	"path/filepath"
	"testing"
)

func TestNewWriterCreatesFileOfRequestedSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viz.shm")
	w, err := NewWriter(path, 64)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()
	if w.Size() != 64 {
		t.Fatalf("expected size 64, got %d", w.Size())
	}
}

func TestWriteAtRejectsOverrun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viz.shm")
	w, err := NewWriter(path, 8)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.WriteAt([]byte("hello"), 0); err != nil {
		t.Fatalf("expected in-bounds write to succeed: %v", err)
	}
	if err := w.WriteAt([]byte("toolong!!"), 0); err == nil {
		t.Fatal("expected an overrunning write to be rejected")
	}
}

func TestReattachGrowsRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viz.shm")
	w, err := NewWriter(path, 8)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Reattach(256); err != nil {
		t.Fatalf("Reattach: %v", err)
	}
	if w.Size() != 256 {
		t.Fatalf("expected size 256 after reattach, got %d", w.Size())
	}
	if err := w.WriteAt(make([]byte, 200), 0); err != nil {
		t.Fatalf("expected a write within the new region to succeed: %v", err)
	}
}
