package npu

import "sync"

// RWLock is a write-preferring reader/writer lock: once a writer is
// waiting, new readers block until it has run, preventing the writer
// starvation that plain sync.RWMutex permits under a steady stream of
// readers. The scheduler holds the writer lock for an entire tick body;
// external readers take the reader lock for queries.
type RWLock struct {
	mu            sync.Mutex
	readerCond    sync.Cond
	writerCond    sync.Cond
	readers       int
	writerWaiting bool
	writerActive  bool
}

// NewRWLock returns a ready-to-use write-preferring lock.
func NewRWLock() *RWLock {
	l := &RWLock{}
	l.readerCond.L = &l.mu
	l.writerCond.L = &l.mu
	return l
}

// RLock acquires the lock for reading, blocking while a writer is active
// or waiting.
func (l *RWLock) RLock() {
	l.mu.Lock()
	for l.writerActive || l.writerWaiting {
		l.readerCond.Wait()
	}
	l.readers++
	l.mu.Unlock()
}

// RUnlock releases a reader's hold on the lock.
func (l *RWLock) RUnlock() {
	l.mu.Lock()
	l.readers--
	if l.readers == 0 {
		l.writerCond.Signal()
	}
	l.mu.Unlock()
}

// Lock acquires the lock for writing, blocking new readers as soon as it
// is called.
func (l *RWLock) Lock() {
	l.mu.Lock()
	l.writerWaiting = true
	for l.readers > 0 || l.writerActive {
		l.writerCond.Wait()
	}
	l.writerWaiting = false
	l.writerActive = true
	l.mu.Unlock()
}

// Unlock releases the writer's hold on the lock.
func (l *RWLock) Unlock() {
	l.mu.Lock()
	l.writerActive = false
	l.writerCond.Signal()
	l.readerCond.Broadcast()
	l.mu.Unlock()
}

// TryLock attempts to acquire the writer lock without blocking, used by
// opportunistic cache refreshers.
func (l *RWLock) TryLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readers > 0 || l.writerActive || l.writerWaiting {
		return false
	}
	l.writerActive = true
	return true
}
