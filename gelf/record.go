package gelf

import (
	"time"

	F "github.com/sagernet/sing/common/format"

	"github.com/gofrs/uuid/v5"
)

// Version is the envelope version tag carried by every record.
const Version = "1.1"

// Field names that are system-assigned. Plain caller fields never overwrite
// them; only context-binding fields are allowed to replace the optional ones.
const (
	FieldVersion       = "version"
	FieldHost          = "host"
	FieldShortMessage  = "short_message"
	FieldFullMessage   = "full_message"
	FieldTimestamp     = "timestamp"
	FieldLevel         = "level"
	FieldCorrelationID = "_correlation_id"
	FieldAppName       = "_app_name"
	FieldEnvironment   = "_environment"
	FieldProduct       = "_product"
	FieldService       = "_service"
	FieldErrorCode     = "_error_code"
	FieldErrorMessage  = "_error_message"
)

// Record is a normalized log envelope. It is treated as immutable once
// built: the façade constructs it, the outputs only read it.
type Record struct {
	Version       string
	Host          string
	ShortMessage  string
	FullMessage   string
	Timestamp     float64
	Level         int
	CorrelationID string

	AppName      string
	Environment  string
	Product      string
	Service      string
	ErrorCode    string
	ErrorMessage string

	// Extra holds caller-supplied fields, stored without the reserved
	// prefix and renamed on encoding.
	Extra map[string]any

	// Raw, when non-empty, is an already-serialized payload that is sent
	// verbatim instead of the JSON document.
	Raw string
}

// CodedError is an error that carries an application error code.
type CodedError interface {
	error
	Code() string
}

// ToMap renders the record as a wire document. Extra fields gain the
// reserved prefix and never clobber system-assigned ones.
func (r Record) ToMap() map[string]any {
	doc := make(map[string]any, 8+len(r.Extra))
	doc[FieldVersion] = r.Version
	doc[FieldHost] = r.Host
	doc[FieldShortMessage] = r.ShortMessage
	doc[FieldTimestamp] = r.Timestamp
	doc[FieldLevel] = r.Level
	doc[FieldCorrelationID] = r.CorrelationID
	if r.FullMessage != "" {
		doc[FieldFullMessage] = r.FullMessage
	}
	if r.AppName != "" {
		doc[FieldAppName] = r.AppName
	}
	if r.Environment != "" {
		doc[FieldEnvironment] = r.Environment
	}
	if r.Product != "" {
		doc[FieldProduct] = r.Product
	}
	if r.Service != "" {
		doc[FieldService] = r.Service
	}
	if r.ErrorCode != "" {
		doc[FieldErrorCode] = r.ErrorCode
	}
	if r.ErrorMessage != "" {
		doc[FieldErrorMessage] = r.ErrorMessage
	}
	for key, value := range r.Extra {
		name := key
		if len(name) == 0 {
			continue
		}
		if name[0] != '_' {
			name = "_" + name
		}
		if _, exists := doc[name]; exists {
			continue
		}
		doc[name] = value
	}
	return doc
}

func newCorrelationID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return F.ToString("t-", time.Now().UnixNano())
	}
	return id.String()
}
