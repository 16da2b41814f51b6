package log

import (
	"io"
	"os"

	"github.com/sagernet/sing/common"

	"github.com/graywire/graywire/gelf"
)

var _ Output = (*ConsoleOutput)(nil)

// ConsoleOutput prints formatted records synchronously for local
// visibility. It is independent of transport health: its failures stay
// local and never reach the forwarding path.
type ConsoleOutput struct {
	formatter Formatter
	writer    io.Writer
	file      *os.File
	filePath  string
}

// NewConsoleOutput creates a console output writing to writer, or to the
// file at filePath when writer is nil.
func NewConsoleOutput(formatter Formatter, writer io.Writer, filePath string) *ConsoleOutput {
	return &ConsoleOutput{
		formatter: formatter,
		writer:    writer,
		filePath:  filePath,
	}
}

// Start opens the file if this is a file output
func (o *ConsoleOutput) Start() error {
	if o.filePath != "" && o.writer == nil {
		file, err := os.OpenFile(o.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		o.file = file
		o.writer = file
	}
	return nil
}

// Write writes a formatted record
func (o *ConsoleOutput) Write(record gelf.Record) error {
	if o.writer == nil {
		return nil
	}
	_, err := io.WriteString(o.writer, o.formatter.Format(record))
	return err
}

// Close flushes and closes the output
func (o *ConsoleOutput) Close() error {
	return common.Close(common.PtrOrNil(o.file))
}
