package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
)

// ErrMissingChangeNumber is returned when a snapshot document has no changenumber.
var ErrMissingChangeNumber = errors.New("snapshot has no changenumber")

// ManifestEntry identifies one versioned artifact. Equality is structural.
type ManifestEntry struct {
	GID      Value `json:"gid,omitempty"`
	Size     Size  `json:"size"`
	Download Value `json:"download,omitempty"`
}

// Manifests maps a manifest key (usually a branch name) to its entry.
type Manifests map[string]ManifestEntry

// Depot is a named sub-state with two independent manifest namespaces.
type Depot struct {
	Manifests          Manifests
	EncryptedManifests Manifests
}

// Snapshot is the full state of one tracked identifier at one generation.
type Snapshot struct {
	ChangeNumber int64
	Depots       map[string]Depot
}

// Equal reports whether both depots hold the same entries in both namespaces.
func (d Depot) Equal(other Depot) bool {
	return maps.Equal(d.Manifests, other.Manifests) &&
		maps.Equal(d.EncryptedManifests, other.EncryptedManifests)
}

// Equal reports structural equality of two snapshots.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.ChangeNumber != other.ChangeNumber {
		return false
	}
	return maps.EqualFunc(s.Depots, other.Depots, Depot.Equal)
}

// IsZero reports whether s is the empty generation of an uninitialized record.
func (s Snapshot) IsZero() bool {
	return s.ChangeNumber == 0 && len(s.Depots) == 0
}

type wireDepot struct {
	Manifests          Manifests `json:"manifests"`
	EncryptedManifests Manifests `json:"encryptedmanifests"`
}

type wireAppInfo struct {
	Depots map[string]Depot `json:"depots"`
}

type wireSnapshot struct {
	ChangeNumber int64       `json:"changenumber"`
	AppInfo      wireAppInfo `json:"appinfo"`
}

// MarshalJSON writes the depot in the remote source's shape.
func (d Depot) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDepot{
		Manifests:          orEmpty(d.Manifests),
		EncryptedManifests: orEmpty(d.EncryptedManifests),
	})
}

// UnmarshalJSON reads a depot object. Missing namespaces become empty maps.
func (d *Depot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Manifests          json.RawMessage `json:"manifests"`
		EncryptedManifests json.RawMessage `json:"encryptedmanifests"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	manifests, err := decodeManifests(raw.Manifests)
	if err != nil {
		return fmt.Errorf("manifests: %w", err)
	}
	encrypted, err := decodeManifests(raw.EncryptedManifests)
	if err != nil {
		return fmt.Errorf("encryptedmanifests: %w", err)
	}
	d.Manifests = manifests
	d.EncryptedManifests = encrypted
	return nil
}

// MarshalJSON writes the snapshot as {"changenumber": N, "appinfo": {"depots": {...}}}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	depots := s.Depots
	if depots == nil {
		depots = map[string]Depot{}
	}
	return json.Marshal(wireSnapshot{
		ChangeNumber: s.ChangeNumber,
		AppInfo:      wireAppInfo{Depots: depots},
	})
}

// UnmarshalJSON reads a snapshot document. The changenumber is required;
// appinfo and depots are optional. Depot values that are not objects are
// skipped since the remote source mixes depots with scalar siblings.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		ChangeNumber json.RawMessage `json:"changenumber"`
		AppInfo      *struct {
			Depots map[string]json.RawMessage `json:"depots"`
		} `json:"appinfo"`
	}
	if !isObject(data) {
		return errors.New("snapshot is not a JSON object")
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if isAbsent(raw.ChangeNumber) {
		return ErrMissingChangeNumber
	}
	cn, err := parseInteger(raw.ChangeNumber)
	if err != nil {
		return fmt.Errorf("changenumber: %w", err)
	}

	depots := make(map[string]Depot)
	if raw.AppInfo != nil {
		for key, value := range raw.AppInfo.Depots {
			if !isObject(value) {
				continue
			}
			var depot Depot
			if err := json.Unmarshal(value, &depot); err != nil {
				return fmt.Errorf("depot %s: %w", key, err)
			}
			depots[key] = depot
		}
	}

	s.ChangeNumber = cn
	s.Depots = depots
	return nil
}

func decodeManifests(data json.RawMessage) (Manifests, error) {
	out := make(Manifests)
	if isAbsent(data) {
		return out, nil
	}
	if !isObject(data) {
		return nil, errors.New("not a JSON object")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for key, value := range raw {
		switch {
		case isAbsent(value):
			continue
		case isObject(value):
			var entry ManifestEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return nil, fmt.Errorf("manifest %s: %w", key, err)
			}
			out[key] = entry
		default:
			// legacy shape: branch name mapped straight to a gid
			var gid Value
			if err := gid.UnmarshalJSON(value); err != nil {
				return nil, fmt.Errorf("manifest %s: %w", key, err)
			}
			out[key] = ManifestEntry{GID: gid}
		}
	}
	return out, nil
}

func parseInteger(data json.RawMessage) (int64, error) {
	text := bytes.TrimSpace(data)
	if len(text) > 0 && text[0] == '"' {
		var s string
		if err := json.Unmarshal(text, &s); err != nil {
			return 0, err
		}
		text = []byte(s)
	}
	return strconv.ParseInt(string(text), 10, 64)
}

func isAbsent(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func orEmpty(m Manifests) Manifests {
	if m == nil {
		return Manifests{}
	}
	return m
}
