package log

import (
	"github.com/sagernet/sing/common/observable"
)

var _ ObservableFactory = (*nopFactory)(nil)

type nopFactory struct {
	level Level
}

// NewNOPFactory returns a factory that discards everything. Used when
// logging is disabled entirely.
func NewNOPFactory() ObservableFactory {
	return &nopFactory{level: LevelDebug}
}

func (f *nopFactory) Start() error {
	return nil
}

func (f *nopFactory) Close() error {
	return nil
}

func (f *nopFactory) Level() Level {
	return f.level
}

func (f *nopFactory) SetLevel(level Level) {
	f.level = level
}

func (f *nopFactory) Logger() Logger {
	return (*nopLogger)(f)
}

func (f *nopFactory) Subscribe() (observable.Subscription[Entry], <-chan struct{}, error) {
	return nil, nil, errNotInitialized
}

func (f *nopFactory) UnSubscribe(observable.Subscription[Entry]) {
}

type nopLogger nopFactory

func (l *nopLogger) Emergency(input any)        {}
func (l *nopLogger) Alert(input any)            {}
func (l *nopLogger) Critical(input any)         {}
func (l *nopLogger) Error(input any)            {}
func (l *nopLogger) Warning(input any)          {}
func (l *nopLogger) Notice(input any)           {}
func (l *nopLogger) Info(input any)             {}
func (l *nopLogger) Debug(input any)            {}
func (l *nopLogger) Log(level Level, input any) {}

func (l *nopLogger) With(fields map[string]any) Logger {
	return l
}

func (l *nopLogger) Enabled() bool {
	return false
}

func (l *nopLogger) TestConnectivity() (bool, string) {
	return false, "disabled"
}
