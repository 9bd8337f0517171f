package storage

import (
	"bufio"
	"io"
	"path/filepath"

	"github.com/google/renameio"
)

const (
	sinkBufferSize = 64 * 1024
	outputPerm     = 0o644
)

// AtomicFile writes a file so that readers observe either the previous
// content or the complete new content. A failed write leaves the destination
// untouched.
type AtomicFile struct {
	Path string
}

func NewAtomicFile(path string) *AtomicFile {
	return &AtomicFile{Path: path}
}

// WriteWith hands write a buffered writer backed by a temporary file in the
// destination directory and renames it over Path once write returns nil.
func (a *AtomicFile) WriteWith(write func(io.Writer) error) error {
	pending, err := renameio.TempFile(filepath.Dir(a.Path), a.Path)
	if err != nil {
		return NewSinkError("create", a.Path, err)
	}
	// Cleanup is a no-op after a successful CloseAtomicallyReplace.
	defer func() { _ = pending.Cleanup() }()

	if err := pending.Chmod(outputPerm); err != nil {
		return NewSinkError("create", a.Path, err)
	}

	bw := bufio.NewWriterSize(pending, sinkBufferSize)
	if err := write(bw); err != nil {
		return NewSinkError("write", a.Path, err)
	}
	if err := bw.Flush(); err != nil {
		return NewSinkError("write", a.Path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return NewSinkError("commit", a.Path, err)
	}
	return nil
}
