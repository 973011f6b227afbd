package subprocess

import (
	"bytes"
	"sync"
)

// cappedBuffer is an io.Writer that keeps at most limit bytes and silently
// drops the rest.
//
// Two properties matter here:
//
//  1. Write never returns an error and always claims the full length.
//     If it errored once full, os/exec would stop copying and the child
//     could block forever on a full pipe — we want it to keep running
//     (and keep being subject to the deadline) while we ignore its spam.
//
//  2. It is mutex-guarded. On the timeout path the runner reads the buffer
//     while the exec copier goroutine may still be flushing the last bytes
//     of a freshly killed child.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	limit   int64
	dropped int64
}

func newCappedBuffer(limit int64) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - int64(b.buf.Len())
	switch {
	case remaining <= 0:
		b.dropped += int64(len(p))
	case int64(len(p)) <= remaining:
		b.buf.Write(p)
	default:
		b.buf.Write(p[:remaining])
		b.dropped += int64(len(p)) - remaining
	}
	return len(p), nil
}

// String returns the retained bytes.
func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Dropped returns how many bytes were discarded past the cap.
func (b *cappedBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
