// Package logger is the line-oriented transaction log sink. Every outcome
// the engine logs becomes exactly one line, and lines are atomic: the
// mutex serializes writers so concurrent agents never interleave output.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Log appends formatted lines to a writer, one line per call.
type Log struct {
	mu sync.Mutex
	w  io.Writer
	f  *os.File // non-nil when backed by Open
}

// Open truncates (or creates) the file at path and returns a log writing to
// it. Writes are unbuffered so the file tracks the run in real time.
func Open(path string) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Log{w: f, f: f}, nil
}

// New returns a log writing to w. Used by tests and by callers that already
// own a sink.
func New(w io.Writer) *Log {
	return &Log{w: w}
}

// Line appends one formatted line. Safe for concurrent use.
func (l *Log) Line(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
	io.WriteString(l.w, "\n")
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
