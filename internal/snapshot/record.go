package snapshot

import (
	"encoding/json"
	"errors"
)

// ErrIncompleteRecord is returned when a stored record has only one generation.
var ErrIncompleteRecord = errors.New("record must hold both old and new generations")

// Record pairs the previous and current generations of one identifier.
// The zero Record is the uninitialized state.
type Record struct {
	Old     Snapshot `json:"old"`
	Current Snapshot `json:"new"`
}

// IsZero reports whether the record has never been populated.
func (r Record) IsZero() bool {
	return r.Old.IsZero() && r.Current.IsZero()
}

// UnmarshalJSON reads {"old": ..., "new": ...}. Both fields are required.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Old json.RawMessage `json:"old"`
		New json.RawMessage `json:"new"`
	}
	if !isObject(data) {
		return errors.New("record is not a JSON object")
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if isAbsent(raw.Old) || isAbsent(raw.New) {
		return ErrIncompleteRecord
	}
	var rec Record
	if err := json.Unmarshal(raw.Old, &rec.Old); err != nil {
		return err
	}
	if err := json.Unmarshal(raw.New, &rec.Current); err != nil {
		return err
	}
	*r = rec
	return nil
}
