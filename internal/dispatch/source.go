package dispatch

import (
	"bufio"
	"os"
)

// FileSource reads operation lines from an agent's trace file.
type FileSource struct {
	f  *os.File
	sc *bufio.Scanner
}

// OpenFile opens the trace file at path.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{f: f, sc: bufio.NewScanner(f)}, nil
}

func (s *FileSource) Next() (string, bool, error) {
	if s.sc.Scan() {
		return s.sc.Text(), true, nil
	}
	return "", false, s.sc.Err()
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	return s.f.Close()
}

// Lines is an in-memory Source, used by tests and embedded setups.
type Lines struct {
	lines []string
	pos   int
}

// NewLines returns a Source yielding the given lines in order.
func NewLines(lines ...string) *Lines {
	return &Lines{lines: lines}
}

func (l *Lines) Next() (string, bool, error) {
	if l.pos >= len(l.lines) {
		return "", false, nil
	}
	line := l.lines[l.pos]
	l.pos++
	return line, true, nil
}
