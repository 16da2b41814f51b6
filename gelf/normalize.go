package gelf

import (
	"time"

	F "github.com/sagernet/sing/common/format"
)

// Mapper normalizes heterogeneous log inputs into well-formed records.
// It carries the static envelope fields that every record shares.
type Mapper struct {
	Host        string
	AppName     string
	Environment string
	Product     string
	Service     string
}

// Normalize builds a record from a message input at the given severity.
// Supported inputs: string, error (including CodedError), map[string]any
// (structured record), and anything else via its string rendering. The
// returned record always carries the required fields, non-empty.
func (m Mapper) Normalize(level int, input any, fields map[string]any, now time.Time) Record {
	record := Record{
		Version:       Version,
		Host:          m.Host,
		Timestamp:     float64(now.UnixNano()) / float64(time.Second),
		Level:         level,
		CorrelationID: newCorrelationID(),
		AppName:       m.AppName,
		Environment:   m.Environment,
		Product:       m.Product,
		Service:       m.Service,
	}
	if record.Host == "" {
		record.Host = "localhost"
	}

	switch message := input.(type) {
	case string:
		record.ShortMessage = message
	case CodedError:
		record.ShortMessage = message.Error()
		record.ErrorMessage = message.Error()
		record.ErrorCode = message.Code()
	case error:
		record.ShortMessage = message.Error()
		record.ErrorMessage = message.Error()
	case map[string]any:
		record.ShortMessage = stringField(message, FieldShortMessage)
		record.FullMessage = stringField(message, FieldFullMessage)
		for key, value := range message {
			if key == FieldShortMessage || key == FieldFullMessage {
				continue
			}
			record.setExtra(key, value, false)
		}
	default:
		record.ShortMessage = F.ToString(input)
	}
	if record.ShortMessage == "" {
		record.ShortMessage = "(no message)"
	}

	// Bound context fields merge last and may replace optional fields.
	for key, value := range fields {
		record.setExtra(key, value, true)
	}
	return record
}

// setExtra stores a caller field. Optional system fields are only replaced
// when the field comes from context binding (override set); required fields
// are never replaced by either path.
func (r *Record) setExtra(key string, value any, override bool) {
	switch key {
	case FieldVersion, FieldHost, FieldShortMessage, FieldTimestamp,
		FieldLevel, FieldCorrelationID:
		return
	case FieldFullMessage:
		if override || r.FullMessage == "" {
			r.FullMessage = F.ToString(value)
		}
		return
	case FieldAppName, "app_name":
		if override || r.AppName == "" {
			r.AppName = F.ToString(value)
		}
		return
	case FieldEnvironment, "environment":
		if override || r.Environment == "" {
			r.Environment = F.ToString(value)
		}
		return
	case FieldProduct, "product":
		if override || r.Product == "" {
			r.Product = F.ToString(value)
		}
		return
	case FieldService, "service":
		if override || r.Service == "" {
			r.Service = F.ToString(value)
		}
		return
	case FieldErrorCode, "error_code":
		if override || r.ErrorCode == "" {
			r.ErrorCode = F.ToString(value)
		}
		return
	case FieldErrorMessage, "error_message":
		if override || r.ErrorMessage == "" {
			r.ErrorMessage = F.ToString(value)
		}
		return
	}
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = value
}

func stringField(fields map[string]any, key string) string {
	value, loaded := fields[key]
	if !loaded {
		return ""
	}
	text, isString := value.(string)
	if isString {
		return text
	}
	return F.ToString(value)
}
