package form

import (
	"encoding/json"
	"fmt"
)

// Record is an accepted registration. It is never modified after creation.
//
// On disk a record is flat: the form fields sit next to "id" and
// "criadoEm" in one JSON object. Those two keys win over same-named fields.
type Record struct {
	ID        int64
	Fields    map[string]string
	CreatedAt string
}

const (
	keyID        = "id"
	keyCreatedAt = "criadoEm"
)

func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[keyID] = r.ID
	m[keyCreatedAt] = r.CreatedAt
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	rec := Record{Fields: make(map[string]string, len(m))}
	for k, raw := range m {
		switch k {
		case keyID:
			if err := json.Unmarshal(raw, &rec.ID); err != nil {
				return fmt.Errorf("form: record id: %w", err)
			}
		case keyCreatedAt:
			if err := json.Unmarshal(raw, &rec.CreatedAt); err != nil {
				return fmt.Errorf("form: record %s: %w", keyCreatedAt, err)
			}
		default:
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				s = string(raw)
			}
			rec.Fields[k] = s
		}
	}
	*r = rec
	return nil
}
