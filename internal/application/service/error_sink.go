package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrorSink receives one descriptive entry per failed source record.
type ErrorSink interface {
	RecordFailure(granuleID string, files any, cause error) error
}

// ErrorLogWriter streams failure lines into a JSON document of the form
// {"errors": ["...", ...]}. It is safe for concurrent use.
type ErrorLogWriter struct {
	mu     sync.Mutex
	w      io.WriteCloser
	count  int
	closed bool
}

// NewErrorLogWriter opens the document on w.
func NewErrorLogWriter(w io.WriteCloser) (*ErrorLogWriter, error) {
	if _, err := io.WriteString(w, `{"errors": [`); err != nil {
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}
	return &ErrorLogWriter{w: w}, nil
}

// WriteLine appends one line to the document.
func (e *ErrorLogWriter) WriteLine(line string) error {
	encoded, err := json.Marshal(line)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("error log is closed")
	}
	prefix := "\n"
	if e.count > 0 {
		prefix = ",\n"
	}
	if _, err := io.WriteString(e.w, prefix+string(encoded)); err != nil {
		return fmt.Errorf("failed to write error log line: %w", err)
	}
	e.count++
	return nil
}

// RecordFailure appends the standard failure line for a granule.
func (e *ErrorLogWriter) RecordFailure(granuleID string, files any, cause error) error {
	return e.WriteLine(FormatFailureLine(granuleID, files, cause))
}

// Count returns the number of lines written.
func (e *ErrorLogWriter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Close terminates the document and closes the underlying writer.
func (e *ErrorLogWriter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	_, writeErr := io.WriteString(e.w, "]}\n")
	return errors.Join(writeErr, e.w.Close())
}

// FormatFailureLine renders the forensic line for a failed granule.
func FormatFailureLine(granuleID string, files any, cause error) string {
	filesJSON, err := json.Marshal(files)
	if err != nil {
		filesJSON = []byte(fmt.Sprintf("%q", fmt.Sprint(files)))
	}
	return fmt.Sprintf(
		"Could not create granule record and file records in RDS for DynamoDB Granule granuleId: %s with files %s, Cause: %v",
		granuleID, filesJSON, cause,
	)
}

// DiscardErrorSink drops every failure. Used when no error log is wanted.
type DiscardErrorSink struct{}

// RecordFailure implements ErrorSink.
func (DiscardErrorSink) RecordFailure(string, any, error) error { return nil }
