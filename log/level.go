package log

import (
	E "github.com/sagernet/sing/common/exceptions"
)

// Level is a syslog-style severity on an inverted ordinal scale: lower
// numeric values are more severe. A record passes the severity filter when
// its level is less than or equal to the configured minimum.
type Level uint8

const (
	LevelEmergency Level = iota
	LevelAlert
	LevelCritical
	LevelError
	LevelWarning
	LevelNotice
	LevelInfo
	LevelDebug
)

// ShouldEmit reports whether a record at level passes the configured
// minimum severity.
func ShouldEmit(level Level, minimum Level) bool {
	return level <= minimum
}

func FormatLevel(level Level) string {
	switch level {
	case LevelEmergency:
		return "emergency"
	case LevelAlert:
		return "alert"
	case LevelCritical:
		return "critical"
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelNotice:
		return "notice"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

func ParseLevel(level string) (Level, error) {
	switch level {
	case "emergency", "emerg":
		return LevelEmergency, nil
	case "alert":
		return LevelAlert, nil
	case "critical", "crit":
		return LevelCritical, nil
	case "error", "err":
		return LevelError, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "notice":
		return LevelNotice, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, E.New("unknown log level: ", level)
	}
}
