package gelfudp

import (
	"os"
	"time"

	F "github.com/sagernet/sing/common/format"
	"github.com/sagernet/sing/common/logger"
)

var _ logger.Logger = (*stderrLogger)(nil)

// stderrLogger is the transport's own minimal logger. It writes straight
// to stderr so transport failures can never feed back into the transport.
type stderrLogger struct{}

func newStderrLogger() *stderrLogger {
	return &stderrLogger{}
}

func (l *stderrLogger) write(level string, args []any) {
	message := F.ToString("graywire ", time.Now().Format("2006-01-02 15:04:05"), " ", level, " ", F.ToString(args...), "\n")
	os.Stderr.WriteString(message)
}

func (l *stderrLogger) Trace(args ...any) {}
func (l *stderrLogger) Debug(args ...any) {}

func (l *stderrLogger) Info(args ...any) {
	l.write("info", args)
}

func (l *stderrLogger) Warn(args ...any) {
	l.write("warn", args)
}

func (l *stderrLogger) Error(args ...any) {
	l.write("error", args)
}

func (l *stderrLogger) Fatal(args ...any) {
	l.write("fatal", args)
}

func (l *stderrLogger) Panic(args ...any) {
	l.write("panic", args)
}
