// Package stream opens the destination an output writes to.
package stream

import (
	"fmt"
	"io"
	"os"
)

// Open returns a writer for path. "" and "-" select stdout, which Close
// leaves open. Any other path is opened for appending and created if needed.
func Open(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file %s: %w", path, err)
	}
	return &File{file: f}, nil
}

// File is an append-only output file.
type File struct {
	file *os.File
}

// Write appends p to the file.
func (f *File) Write(p []byte) (int, error) {
	return f.file.Write(p)
}

// Flush syncs the file to disk.
func (f *File) Flush() error {
	return f.file.Sync()
}

// Close flushes and closes the file.
func (f *File) Close() error {
	if err := f.Flush(); err != nil {
		_ = f.file.Close()
		return err
	}
	return f.file.Close()
}

// Name returns the file path.
func (f *File) Name() string {
	return f.file.Name()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
