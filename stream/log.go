package stream

import (
	"sync"

	"github.com/contentai-pro/dashboard-core/internal"
)

// LogCapacity is how many notifications the client keeps.
const LogCapacity = 50

// Log is a bounded list of notifications, newest first. Pushing onto a full log evicts
// the oldest entry.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Notification
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = LogCapacity
	}
	return &Log{
		capacity: capacity,
		entries:  make([]Notification, 0, capacity),
	}
}

func (l *Log) Push(n Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, Notification{})
	}
	copy(l.entries[1:], l.entries)
	l.entries[0] = n
	internal.Assert("notification log is within capacity", len(l.entries) <= l.capacity)
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notification, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
