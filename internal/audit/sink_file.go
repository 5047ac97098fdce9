package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileSink appends one human-greppable line per event:
//
//	2026-08-29 14:03:11 | WARNING | DENIED | adam | Sales | User groups: it_support
//
// Field order is stable within a deployment; empty trailing fields are
// omitted rather than rendered blank.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (creating directories as needed) the audit log for append.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileSink{file: file}, nil
}

func (s *FileSink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.WriteString(FormatLine(event) + "\n")
	return err
}

// Close releases the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// FormatLine renders one event in the sink's line format.
func FormatLine(event Event) string {
	fields := []string{
		event.Timestamp.Format("2006-01-02 15:04:05"),
		event.Tag.Level(),
		string(event.Tag),
		event.Username,
	}
	if event.Department != "" {
		fields = append(fields, event.Department)
	}
	if event.Detail != "" {
		fields = append(fields, event.Detail)
	}
	return strings.Join(fields, " | ")
}
