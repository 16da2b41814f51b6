package option

import (
	"os"
	"strconv"
	"time"

	"github.com/sagernet/sing/common/json/badoption"
)

// FromEnv overlays GRAYWIRE_* environment variables onto options.
// Malformed values are ignored: configuration problems disable features,
// they never fail the process.
func FromEnv(options *LogOptions) {
	if v := os.Getenv("GRAYWIRE_LOG_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			options.Disabled = b
		}
	}
	if v := os.Getenv("GRAYWIRE_LOG_LEVEL"); v != "" {
		options.Level = v
	}
	if v := os.Getenv("GRAYWIRE_APP_NAME"); v != "" {
		options.AppName = v
	}
	if v := os.Getenv("GRAYWIRE_ENVIRONMENT"); v != "" {
		options.Environment = v
	}
	if v := os.Getenv("GRAYWIRE_PRODUCT"); v != "" {
		options.Product = v
	}
	if v := os.Getenv("GRAYWIRE_SERVICE"); v != "" {
		options.Service = v
	}
	if v := os.Getenv("GRAYWIRE_HOSTNAME"); v != "" {
		options.Hostname = v
	}

	gelf := options.Gelf
	if gelf == nil {
		gelf = &GelfOptions{}
	}
	modified := false
	if v := os.Getenv("GRAYWIRE_GELF_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			gelf.Disabled = b
			modified = true
		}
	}
	if v := os.Getenv("GRAYWIRE_GELF_HOST"); v != "" {
		gelf.Host = v
		modified = true
	}
	if v := os.Getenv("GRAYWIRE_GELF_PORT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			gelf.Port = uint16(n)
			modified = true
		}
	}
	if v := os.Getenv("GRAYWIRE_GELF_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			gelf.QueueCapacity = n
			modified = true
		}
	}
	if v := os.Getenv("GRAYWIRE_GELF_DRAIN_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			gelf.DrainBatchSize = n
			modified = true
		}
	}
	if v := os.Getenv("GRAYWIRE_GELF_RECONNECT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			gelf.ReconnectInterval = badoption.Duration(d)
			modified = true
		}
	}
	if modified && options.Gelf == nil {
		options.Gelf = gelf
	}
}
