// Package shm implements mmap-backed shared-memory writers for the
// visualization and motor publication paths, using the same syscall-level
// unix package other examples in the pack reach for instead of a
// higher-level mmap wrapper.
package shm

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Writer owns one mmap-backed region backing a fixed-size file. Callers
// serialize writes through WriteAt; re-attachment (Reattach) is the only
// operation that changes the backing file and must follow the mandatory
// ordering from §6.6: acquire the lock, drop the existing mapping, re-init
// the file, install the new mapping, all under the same lock.
type Writer struct {
	mu   sync.Mutex
	path string
	size int

	file *os.File
	data []byte
}

// NewWriter creates (or truncates) path to size bytes and maps it.
func NewWriter(path string, size int) (*Writer, error) {
	w := &Writer{path: path, size: size}
	if err := w.reattachLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteAt copies data into the mapped region starting at offset, returning
// an error if it would overrun the region.
func (w *Writer) WriteAt(data []byte, offset int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if offset < 0 || offset+len(data) > len(w.data) {
		return fmt.Errorf("shm: write of %d bytes at offset %d overruns %d-byte region", len(data), offset, len(w.data))
	}
	copy(w.data[offset:], data)
	return nil
}

// Reattach drops the current mapping, truncates/re-inits the backing file,
// and installs a fresh mapping, optionally at a new size. This is the only
// path that may change size; it follows the ordering §6.6 mandates so a
// concurrent reader never observes a mapping mid-truncation.
func (w *Writer) Reattach(size int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = size
	return w.reattachLocked()
}

func (w *Writer) reattachLocked() error {
	if w.data != nil {
		if err := unix.Munmap(w.data); err != nil {
			return fmt.Errorf("shm: unmapping %s: %w", w.path, err)
		}
		w.data = nil
	}
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}

	f, err := os.OpenFile(w.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("shm: opening %s: %w", w.path, err)
	}
	if err := f.Truncate(int64(w.size)); err != nil {
		f.Close()
		return fmt.Errorf("shm: truncating %s to %d: %w", w.path, w.size, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, w.size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("shm: mmap %s: %w", w.path, err)
	}

	w.file = f
	w.data = data
	return nil
}

// Close unmaps and closes the backing file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var err error
	if w.data != nil {
		err = unix.Munmap(w.data)
		w.data = nil
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
		w.file = nil
	}
	return err
}

// Size returns the current mapped region size in bytes.
func (w *Writer) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}
