package storage

import (
	"fmt"
	"time"
)

// SinkError provides context for failures while producing an output file.
type SinkError struct {
	Op        string    // Operation: "create", "write", "commit"
	Path      string    // Destination file path
	Cause     error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *SinkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sink %s failed for %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("sink %s failed for %s", e.Op, e.Path)
}

func (e *SinkError) Unwrap() error {
	return e.Cause
}

// NewSinkError creates a sink error with timestamp.
func NewSinkError(op, path string, cause error) error {
	return &SinkError{
		Op:        op,
		Path:      path,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// ParquetError provides context for columnar track cache operations.
type ParquetError struct {
	Op        string    // Operation: "open", "read", "write"
	Path      string    // Parquet file path
	Row       int64     // Row index where the error occurred, -1 if unknown
	Cause     error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ParquetError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("parquet %s failed at %s (row %d): %v", e.Op, e.Path, e.Row, e.Cause)
	}
	return fmt.Sprintf("parquet %s failed at %s: %v", e.Op, e.Path, e.Cause)
}

func (e *ParquetError) Unwrap() error {
	return e.Cause
}

// NewParquetError creates a parquet error with timestamp.
func NewParquetError(op, path string, row int64, cause error) error {
	return &ParquetError{
		Op:        op,
		Path:      path,
		Row:       row,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}
