package framebuf

import (
	"errors"
	"sync"
)

// ErrReleased is returned by Guarded.Lock after the frame has been handed
// back to its producer.
var ErrReleased = errors.New("framebuf: frame already released")

// Locker pins a frame for the duration of a decode. Lock returns the
// pinned buffer; Unlock must be called exactly once for every successful
// Lock, including on early-exit paths.
type Locker interface {
	Lock() (*Buffer, error)
	Unlock()
}

// Static is a Locker for a buffer that is already owned by the caller.
type Static struct {
	Buf *Buffer
}

// Lock returns the wrapped buffer.
func (s Static) Lock() (*Buffer, error) {
	if s.Buf == nil {
		return nil, errors.New("framebuf: nil buffer")
	}
	return s.Buf, nil
}

// Unlock is a no-op.
func (Static) Unlock() {}

// Guarded is a Locker for a buffer shared with a producer that recycles
// frames. The producer calls Release once no further decode may start;
// Release blocks until any in-flight decode has unlocked the frame.
type Guarded struct {
	mu       sync.RWMutex
	buf      *Buffer
	released bool
}

// NewGuarded wraps buf.
func NewGuarded(buf *Buffer) *Guarded {
	return &Guarded{buf: buf}
}

// Lock pins the frame for reading.
func (g *Guarded) Lock() (*Buffer, error) {
	g.mu.RLock()
	if g.released {
		g.mu.RUnlock()
		return nil, ErrReleased
	}
	return g.buf, nil
}

// Unlock releases a pin taken by Lock.
func (g *Guarded) Unlock() {
	g.mu.RUnlock()
}

// Release waits for readers to finish and marks the frame unusable.
func (g *Guarded) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = true
	g.buf = nil
}
