package log

import (
	"github.com/graywire/graywire/gelf"
)

// Output interface for different record destinations
type Output interface {
	// Write writes a normalized record to the output
	Write(record gelf.Record) error
	// Close flushes and closes the output
	Close() error
}

// Entry is the compact form emitted to observers.
type Entry struct {
	Level   Level
	Message string
}
