package log

import (
	"sort"
	"strings"
	"time"

	F "github.com/sagernet/sing/common/format"

	"github.com/graywire/graywire/gelf"
	"github.com/logrusorgru/aurora"
)

// Formatter renders records as dev-friendly console lines.
type Formatter struct {
	BaseTime         time.Time
	DisableColors    bool
	DisableTimestamp bool
	FullTimestamp    bool
	TimestampFormat  string
	DisableLineBreak bool
}

// Format renders a single record. It never fails: a record it cannot
// render fully still produces the level tag and short message.
func (f Formatter) Format(record gelf.Record) string {
	colors := aurora.NewAurora(!f.DisableColors)

	level := Level(record.Level)
	levelText := strings.ToUpper(FormatLevel(level))
	switch level {
	case LevelDebug:
		levelText = colors.Gray(15, levelText).String()
	case LevelInfo:
		levelText = colors.Cyan(levelText).String()
	case LevelNotice:
		levelText = colors.Green(levelText).String()
	case LevelWarning:
		levelText = colors.Yellow(levelText).String()
	case LevelError:
		levelText = colors.Red(levelText).String()
	default:
		levelText = colors.Red(levelText).Bold().String()
	}

	var builder strings.Builder
	if !f.DisableTimestamp {
		timestampFormat := f.TimestampFormat
		if timestampFormat == "" {
			timestampFormat = "-0700 2006-01-02 15:04:05"
		}
		timestamp := time.Unix(0, int64(record.Timestamp*float64(time.Second)))
		if !f.FullTimestamp && !f.BaseTime.IsZero() {
			builder.WriteString(F.ToString("+", timestamp.Sub(f.BaseTime).Truncate(time.Millisecond)))
		} else {
			builder.WriteString(timestamp.Format(timestampFormat))
		}
		builder.WriteString(" ")
	}
	builder.WriteString(levelText)
	builder.WriteString(" ")
	if record.Service != "" {
		builder.WriteString("[")
		builder.WriteString(record.Service)
		builder.WriteString("] ")
	}
	builder.WriteString(record.ShortMessage)

	if len(record.Extra) > 0 {
		keys := make([]string, 0, len(record.Extra))
		for key := range record.Extra {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			builder.WriteString(" ")
			builder.WriteString(colors.Gray(11, key+"=").String())
			builder.WriteString(F.ToString(record.Extra[key]))
		}
	}

	if !f.DisableLineBreak {
		builder.WriteString("\n")
	}
	return builder.String()
}
