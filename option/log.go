package option

import (
	"github.com/sagernet/sing/common/json/badoption"
)

// LogOptions defines the configuration for the logging facade
type LogOptions struct {
	Disabled     bool           `json:"disabled,omitempty"`
	Level        string         `json:"level,omitempty"`
	Output       string         `json:"output,omitempty"`
	Timestamp    bool           `json:"timestamp,omitempty"`
	DisableColor bool           `json:"disable_color,omitempty"`
	AppName      string         `json:"app_name,omitempty"`
	Environment  string         `json:"environment,omitempty"`
	Product      string         `json:"product,omitempty"`
	Service      string         `json:"service,omitempty"`
	Hostname     string         `json:"hostname,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	Gelf         *GelfOptions   `json:"gelf,omitempty"`
}

// GelfOptions defines the configuration for the GELF UDP forwarding transport.
// Leaving Host empty or Port zero disables forwarding entirely: no socket is
// ever opened and submission becomes a no-op.
type GelfOptions struct {
	Disabled          bool               `json:"disabled,omitempty"`
	Host              string             `json:"host,omitempty"`
	Port              uint16             `json:"port,omitempty"`
	QueueCapacity     int                `json:"queue_capacity,omitempty"`
	DrainBatchSize    int                `json:"drain_batch_size,omitempty"`
	ReconnectInterval badoption.Duration `json:"reconnect_interval,omitempty"`
}

// Enabled reports whether the forwarding feature is configured at all.
func (o *GelfOptions) Enabled() bool {
	return o != nil && !o.Disabled && o.Host != "" && o.Port != 0
}
