package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Quantity is a numeric amount that the source platforms encode either
// as a JSON number or as a numeric string. Decoding never fails: any
// value that cannot be parsed is recorded as absent so a single bad
// line item does not reject the whole payload.
type Quantity struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements lenient decoding. It always returns nil.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	q.Value, q.Valid = 0, false

	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}

	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return nil
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}

	q.Value, q.Valid = f, true
	return nil
}

// MarshalJSON encodes absent quantities as null.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(q.Value)
}

// FlexID is an identifier that sources encode either as a JSON number
// or as a string. It normalizes to the string form; malformed values
// decode to the empty string rather than failing the payload.
type FlexID string

// UnmarshalJSON implements lenient decoding. It always returns nil.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	*id = ""

	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}

	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil
		}
		*id = FlexID(str)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	*id = FlexID(n.String())
	return nil
}

// MarshalJSON keeps the normalized string form.
func (id FlexID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}
