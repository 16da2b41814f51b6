package log

import (
	"context"
	"os"
	"time"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/observable"

	"github.com/graywire/graywire/gelf"
	"github.com/graywire/graywire/transport/gelfudp"
)

// Factory owns the outputs and produces loggers bound to them.
type Factory interface {
	Start() error
	Close() error
	Level() Level
	SetLevel(level Level)
	Logger() Logger
}

// ObservableFactory additionally exposes the emitted entry stream.
type ObservableFactory interface {
	Factory
	Subscribe() (subscription observable.Subscription[Entry], done <-chan struct{}, err error)
	UnSubscribe(subscription observable.Subscription[Entry])
}

// Logger is the level-tagged façade. Inputs may be a string, an error
// (including gelf.CodedError) or a structured map[string]any record; all
// are normalized into the same envelope. Emitting never panics and never
// returns an error to application code.
type Logger interface {
	Emergency(input any)
	Alert(input any)
	Critical(input any)
	Error(input any)
	Warning(input any)
	Notice(input any)
	Info(input any)
	Debug(input any)
	Log(level Level, input any)

	// With returns an equivalent logger with fields pre-merged into every
	// record it emits. Bound fields may override optional envelope fields.
	With(fields map[string]any) Logger

	// Enabled reports whether remote forwarding is configured.
	Enabled() bool

	// TestConnectivity probes the forwarding transport. Success only means
	// the local stack accepted the datagram, never remote receipt.
	TestConnectivity() (bool, string)
}

// errNotInitialized is returned by Subscribe when the factory was built
// without the observable entry stream.
var errNotInitialized = E.New("not initialized")

var _ ObservableFactory = (*facadeFactory)(nil)

type facadeFactory struct {
	ctx            context.Context
	mapper         gelf.Mapper
	outputs        []Output
	transport      *gelfudp.Transport
	baseFields     map[string]any
	level          Level
	needObservable bool
	subscriber     *observable.Subscriber[Entry]
	observer       *observable.Observer[Entry]
}

// NewFactory creates a factory fanning out to outputs. transport may be
// nil when forwarding is disabled.
func NewFactory(
	ctx context.Context,
	mapper gelf.Mapper,
	outputs []Output,
	transport *gelfudp.Transport,
	baseFields map[string]any,
	needObservable bool,
) ObservableFactory {
	factory := &facadeFactory{
		ctx:            ctx,
		mapper:         mapper,
		outputs:        outputs,
		transport:      transport,
		baseFields:     baseFields,
		level:          LevelDebug,
		needObservable: needObservable,
		subscriber:     observable.NewSubscriber[Entry](128),
	}
	if needObservable {
		factory.observer = observable.NewObserver[Entry](factory.subscriber, 64)
	}
	return factory
}

// Start initializes all outputs
func (f *facadeFactory) Start() error {
	for _, output := range f.outputs {
		if starter, isStarter := output.(interface{ Start() error }); isStarter {
			if err := starter.Start(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes all outputs
func (f *facadeFactory) Close() error {
	var errors []error
	for _, output := range f.outputs {
		if err := output.Close(); err != nil {
			errors = append(errors, err)
		}
	}
	if err := f.subscriber.Close(); err != nil {
		errors = append(errors, err)
	}
	if len(errors) > 0 {
		return errors[0]
	}
	return nil
}

func (f *facadeFactory) Level() Level {
	return f.level
}

func (f *facadeFactory) SetLevel(level Level) {
	f.level = level
}

func (f *facadeFactory) Logger() Logger {
	return &facadeLogger{
		factory: f,
		fields:  f.baseFields,
	}
}

func (f *facadeFactory) Subscribe() (subscription observable.Subscription[Entry], done <-chan struct{}, err error) {
	if f.observer == nil {
		return nil, nil, errNotInitialized
	}
	return f.observer.Subscribe()
}

func (f *facadeFactory) UnSubscribe(subscription observable.Subscription[Entry]) {
	if f.observer != nil {
		f.observer.UnSubscribe(subscription)
	}
}

func (f *facadeFactory) emit(level Level, input any, fields map[string]any) {
	if !ShouldEmit(level, f.level) {
		return
	}
	record := f.mapper.Normalize(int(level), input, fields, time.Now())

	// The sinks are independent: a broken console stream never keeps the
	// record from the transport, and vice versa.
	for _, output := range f.outputs {
		f.writeTo(output, record)
	}

	if f.needObservable {
		f.subscriber.Emit(Entry{level, record.ShortMessage})
	}
}

// writeTo delivers one record to one output, absorbing both errors and
// panics. The worst case is a minimal fallback print to stderr.
func (f *facadeFactory) writeTo(output Output, record gelf.Record) {
	defer func() {
		if recovered := recover(); recovered != nil {
			fallbackPrint(record)
		}
	}()
	if err := output.Write(record); err != nil {
		fallbackPrint(record)
	}
}

func fallbackPrint(record gelf.Record) {
	os.Stderr.WriteString(FormatLevel(Level(record.Level)) + " " + record.ShortMessage + "\n")
}

type facadeLogger struct {
	factory *facadeFactory
	fields  map[string]any
}

func (l *facadeLogger) Log(level Level, input any) {
	l.factory.emit(level, input, l.fields)
}

func (l *facadeLogger) Emergency(input any) { l.Log(LevelEmergency, input) }
func (l *facadeLogger) Alert(input any)     { l.Log(LevelAlert, input) }
func (l *facadeLogger) Critical(input any)  { l.Log(LevelCritical, input) }
func (l *facadeLogger) Error(input any)     { l.Log(LevelError, input) }
func (l *facadeLogger) Warning(input any)   { l.Log(LevelWarning, input) }
func (l *facadeLogger) Notice(input any)    { l.Log(LevelNotice, input) }
func (l *facadeLogger) Info(input any)      { l.Log(LevelInfo, input) }
func (l *facadeLogger) Debug(input any)     { l.Log(LevelDebug, input) }

func (l *facadeLogger) With(fields map[string]any) Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for key, value := range l.fields {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	return &facadeLogger{
		factory: l.factory,
		fields:  merged,
	}
}

func (l *facadeLogger) Enabled() bool {
	return l.factory.transport != nil && l.factory.transport.Enabled()
}

func (l *facadeLogger) TestConnectivity() (bool, string) {
	if l.factory.transport == nil {
		return false, "disabled"
	}
	return l.factory.transport.TestConnectivity()
}
