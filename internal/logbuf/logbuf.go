// Package logbuf provides a fixed-capacity in-memory log ring. It
// doubles as the logging capability injected into the control core:
// every line goes to the standard logger and is retained for the
// control panel's log view.
package logbuf

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultCapacity matches the firmware's original 100-entry buffer.
const DefaultCapacity = 100

// Entry is one retained log line.
type Entry struct {
	Time    time.Time
	Message string
}

// Buffer is a thread-safe FIFO of recent log lines. When full, the
// oldest entry is dropped.
type Buffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	head     int // next write position
	count    int
	now      func() time.Time
}

// New creates a Buffer with the given capacity (DefaultCapacity if <= 0).
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Logf formats the message, prints it through the standard logger and
// appends it to the ring. It is the Logf capability handed to the
// controller and config store.
func (b *Buffer) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Print(msg)

	b.mu.Lock()
	b.entries[b.head] = Entry{Time: b.now(), Message: msg}
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
	b.mu.Unlock()
}

// Entries returns the retained lines, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, b.count)
	start := (b.head - b.count + b.capacity) % b.capacity
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(start+i)%b.capacity]
	}
	return out
}

// Len returns the number of retained lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
