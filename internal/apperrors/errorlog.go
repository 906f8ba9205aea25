package apperrors

import (
	"sync"
	"time"
)

// DefaultErrorLogCapacity bounds the shared error log.
const DefaultErrorLogCapacity = 100

// LogEntry is one recorded terminal error.
type LogEntry struct {
	Code       Code      `json:"code"`
	Message    string    `json:"message"`
	Stage      string    `json:"stage,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorLog is a bounded, synchronized ring buffer of terminal errors. Once
// capacity is reached the oldest entries are evicted.
type ErrorLog struct {
	mu      sync.Mutex
	entries []LogEntry
	start   int
	count   int
}

// NewErrorLog creates an ErrorLog holding at most capacity entries.
// Non-positive capacities fall back to the default.
func NewErrorLog(capacity int) *ErrorLog {
	if capacity <= 0 {
		capacity = DefaultErrorLogCapacity
	}
	return &ErrorLog{entries: make([]LogEntry, capacity)}
}

// Append records an error, evicting the oldest entry when full.
func (l *ErrorLog) Append(err *Error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{
		Code:       err.Code,
		Message:    err.Message,
		Stage:      err.Stage,
		DocumentID: err.DocumentID,
		Timestamp:  time.Now(),
	}
	if l.count < len(l.entries) {
		l.entries[(l.start+l.count)%len(l.entries)] = entry
		l.count++
		return
	}
	l.entries[l.start] = entry
	l.start = (l.start + 1) % len(l.entries)
}

// Recent returns up to n entries, newest first. n <= 0 returns everything.
func (l *ErrorLog) Recent(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]LogEntry, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.start + l.count - 1 - i) % len(l.entries)
		out = append(out, l.entries[idx])
	}
	return out
}

// Len reports how many entries are currently held.
func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
