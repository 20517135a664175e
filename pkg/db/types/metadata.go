package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a flat string map persisted as a JSON object.
type Metadata map[string]string

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return m.parse([]byte(v))
	case []byte:
		return m.parse(v)
	default:
		return fmt.Errorf("Metadata: unsupported Scan type %T", src)
	}
}

func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, fmt.Errorf("Metadata: marshal: %w", err)
	}
	return string(data), nil
}

// Clone returns an independent copy, never nil.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *Metadata) parse(raw []byte) error {
	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("Metadata: parse: %w", err)
	}
	*m = Metadata(out)
	return nil
}
