// Package zapadapter bridges zap into the graywire pipeline: a zapcore.Core
// that normalizes zap entries and forwards them through a log.Factory, so
// applications already instrumented with zap reach the same collector.
package zapadapter

import (
	"go.uber.org/zap/zapcore"

	"github.com/graywire/graywire/log"
)

var _ zapcore.Core = (*Core)(nil)

type Core struct {
	factory log.Factory
	fields  map[string]any
}

// NewCore creates a zap core writing through factory.
func NewCore(factory log.Factory) *Core {
	return &Core{factory: factory}
}

func (c *Core) Enabled(level zapcore.Level) bool {
	return log.ShouldEmit(FromZapLevel(level), c.factory.Level())
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	merged := make(map[string]any, len(c.fields)+len(fields))
	for key, value := range c.fields {
		merged[key] = value
	}
	encoder := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(encoder)
	}
	for key, value := range encoder.Fields {
		merged[key] = value
	}
	return &Core{
		factory: c.factory,
		fields:  merged,
	}
}

func (c *Core) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *Core) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	logger := c.factory.Logger()
	if len(c.fields) > 0 {
		logger = logger.With(c.fields)
	}
	if len(fields) > 0 {
		encoder := zapcore.NewMapObjectEncoder()
		for _, field := range fields {
			field.AddTo(encoder)
		}
		logger = logger.With(encoder.Fields)
	}
	logger.Log(FromZapLevel(entry.Level), entry.Message)
	return nil
}

func (c *Core) Sync() error {
	return nil
}

// FromZapLevel maps zap levels onto the inverted syslog scale.
func FromZapLevel(level zapcore.Level) log.Level {
	switch level {
	case zapcore.DebugLevel:
		return log.LevelDebug
	case zapcore.InfoLevel:
		return log.LevelInfo
	case zapcore.WarnLevel:
		return log.LevelWarning
	case zapcore.ErrorLevel:
		return log.LevelError
	case zapcore.DPanicLevel:
		return log.LevelCritical
	case zapcore.PanicLevel:
		return log.LevelAlert
	case zapcore.FatalLevel:
		return log.LevelEmergency
	default:
		return log.LevelInfo
	}
}
