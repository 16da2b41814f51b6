package gelf

import (
	"encoding/json"

	E "github.com/sagernet/sing/common/exceptions"
)

// Marshal renders one record as a single datagram payload: a UTF-8 JSON
// object, or the raw bytes when the record is already a string payload.
// No framing, no compression; records larger than the path MTU are the
// network's problem, not ours.
func Marshal(record Record) ([]byte, error) {
	if record.Raw != "" {
		return []byte(record.Raw), nil
	}
	payload, err := json.Marshal(record.ToMap())
	if err != nil {
		return nil, E.Cause(err, "encode record ", record.CorrelationID)
	}
	return payload, nil
}
