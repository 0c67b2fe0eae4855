package console

import "sync"

// DefaultCapacity bounds the console history kept for newly connecting viewers.
const DefaultCapacity = 500

// Buffer is a bounded, ordered buffer of console lines. Inserting beyond
// capacity evicts the oldest line first. Safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	head  int
	size  int
}

// NewBuffer returns a buffer holding at most capacity lines.
// Non-positive capacity falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{lines: make([]string, capacity)}
}

func (b *Buffer) Append(line string) {
	b.mu.Lock()
	idx := (b.head + b.size) % len(b.lines)
	b.lines[idx] = line
	if b.size < len(b.lines) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.lines)
	}
	b.mu.Unlock()
}

// Snapshot returns the buffered lines in arrival order.
func (b *Buffer) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.lines[(b.head+i)%len(b.lines)]
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
