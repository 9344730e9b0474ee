package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is an opaque JSON scalar kept in compact canonical form. Two values are
// equal when their canonical text is equal, so the number 1 and the string "1"
// remain distinct.
type Value string

// StringValue returns the Value for a JSON string.
func StringValue(s string) Value {
	b, _ := json.Marshal(s)
	return Value(b)
}

// IntValue returns the Value for a JSON integer.
func IntValue(n int64) Value {
	return Value(strconv.FormatInt(n, 10))
}

// IsZero reports whether the value was absent from the input.
func (v Value) IsZero() bool { return v == "" }

// String returns the scalar without JSON quoting when it is a string.
func (v Value) String() string {
	if v == "" {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(v), &s); err == nil {
		return s
	}
	return string(v)
}

// MarshalJSON emits the canonical text, or null for an absent value.
func (v Value) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	return []byte(v), nil
}

// UnmarshalJSON stores the compacted JSON text of data.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = ""
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return err
	}
	*v = Value(buf.String())
	return nil
}

// Size is a byte count. The remote source encodes sizes as decimal strings,
// so both "123" and 123 decode to the same Size.
type Size int64

// UnmarshalJSON accepts a JSON number, a numeric string, or null.
func (s *Size) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*s = 0
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		if str == "" {
			*s = 0
			return nil
		}
		trimmed = []byte(str)
	}
	n, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("size %s is not an integer", trimmed)
	}
	*s = Size(n)
	return nil
}
