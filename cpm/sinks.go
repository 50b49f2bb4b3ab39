package cpm

import (
	"os"
)

// Sink is a write-only byte destination with a flush-on-shutdown
// Close, the "polymorphic sink" design note, optionally backed by
// nothing at all. The printer uses it; the log goes through slog.
type Sink interface {
	Write([]byte) (int, error)
	Close() error
}

// nullSink discards everything written to it; used when no printer
// path was configured.
type nullSink struct{}

func (nullSink) Write(p []byte) (int, error) { return len(p), nil }
func (nullSink) Close() error                { return nil }

// NullSink returns a Sink that discards all writes.
func NullSink() Sink { return nullSink{} }

// fileSink appends to a host file, opening it lazily on first write so
// that a configured-but-unused printer never creates an empty file.
type fileSink struct {
	path string
	file *os.File
}

// NewFileSink returns a Sink that appends every write to path,
// creating it if necessary.
func NewFileSink(path string) Sink {
	return &fileSink{path: path}
}

func (f *fileSink) Write(p []byte) (int, error) {
	if f.file == nil {
		file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return 0, err
		}
		f.file = file
	}
	return f.file.Write(p)
}

func (f *fileSink) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}
