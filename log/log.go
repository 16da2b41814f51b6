package log

import (
	"context"
	"io"
	"os"
	"time"

	E "github.com/sagernet/sing/common/exceptions"

	"github.com/graywire/graywire/gelf"
	"github.com/graywire/graywire/option"
	"github.com/graywire/graywire/transport/gelfudp"
)

type Options struct {
	Context       context.Context
	Options       option.LogOptions
	Observable    bool
	DefaultWriter io.Writer
	BaseTime      time.Time
}

func New(options Options) (ObservableFactory, error) {
	logOptions := options.Options

	if logOptions.Disabled {
		return NewNOPFactory(), nil
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}

	hostname := logOptions.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	mapper := gelf.Mapper{
		Host:        hostname,
		AppName:     logOptions.AppName,
		Environment: logOptions.Environment,
		Product:     logOptions.Product,
		Service:     logOptions.Service,
	}

	var consoleWriter io.Writer
	var consolePath string
	switch logOptions.Output {
	case "":
		consoleWriter = options.DefaultWriter
		if consoleWriter == nil {
			consoleWriter = os.Stderr
		}
	case "stderr":
		consoleWriter = os.Stderr
	case "stdout":
		consoleWriter = os.Stdout
	default:
		consolePath = logOptions.Output
	}

	formatter := Formatter{
		BaseTime:         options.BaseTime,
		DisableColors:    logOptions.DisableColor || consolePath != "",
		DisableTimestamp: !logOptions.Timestamp && consolePath != "",
		FullTimestamp:    logOptions.Timestamp,
		TimestampFormat:  "-0700 2006-01-02 15:04:05",
	}

	outputs := []Output{NewConsoleOutput(formatter, consoleWriter, consolePath)}

	// A missing or disabled collector endpoint leaves the transport out
	// entirely: no socket allocation, submission is a no-op.
	var transport *gelfudp.Transport
	if logOptions.Gelf.Enabled() {
		transport = gelfudp.NewTransport(gelfudp.ParseConfig(logOptions.Gelf, mapper))
		outputs = append(outputs, transport)
	}

	factory := NewFactory(ctx, mapper, outputs, transport, logOptions.Fields, options.Observable)

	if logOptions.Level != "" {
		logLevel, err := ParseLevel(logOptions.Level)
		if err != nil {
			return nil, E.Cause(err, "parse log level")
		}
		factory.SetLevel(logLevel)
	} else {
		factory.SetLevel(LevelDebug)
	}

	return factory, nil
}
