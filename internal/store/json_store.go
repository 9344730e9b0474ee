package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

// JSONStore keeps one record file and one report file per identifier:
//
//	<data_dir>/
//	  <id>_data.json     {"<id>": {"old": ..., "new": ...}}
//	  <id>_changes.json  {"latest": ..., "old": ..., "depots_new": ..., "depots_old": ...}
//
// Files are replaced atomically through a temporary file and rename.
type JSONStore struct {
	dataDir string
	mu      sync.RWMutex
}

// NewJSONStore creates the data directory if needed.
func NewJSONStore(dataDir string) (*JSONStore, error) {
	if dataDir == "" {
		return nil, errors.ConfigError("storage data directory is empty").Build()
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, errors.StorageError("failed to create data directory").
			WithCause(err).
			WithContext("data_dir", dataDir).
			Build()
	}
	return &JSONStore{dataDir: dataDir}, nil
}

// DataDir returns the directory holding the store files.
func (js *JSONStore) DataDir() string { return js.dataDir }

func (js *JSONStore) recordPath(id string) string {
	return filepath.Join(js.dataDir, id+"_data.json")
}

func (js *JSONStore) reportPath(id string) string {
	return filepath.Join(js.dataDir, id+"_changes.json")
}

// Load reads <id>_data.json. A missing file, an empty document, or a document
// with no entry for id yields the zero Record.
func (js *JSONStore) Load(ctx context.Context, id string) (snapshot.Record, error) {
	if err := ValidateIdentifier(id); err != nil {
		return snapshot.Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return snapshot.Record{}, err
	}

	js.mu.RLock()
	defer js.mu.RUnlock()

	doc, err := js.readRecordDocument(id)
	if err != nil {
		return snapshot.Record{}, err
	}
	raw, ok := doc[id]
	if !ok || isEmptyDocument(raw) {
		return snapshot.Record{}, nil
	}

	var rec snapshot.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return snapshot.Record{}, malformed(id, "record", err)
	}
	return rec, nil
}

// Save writes rec under id, keeping any other entries already in the file.
func (js *JSONStore) Save(ctx context.Context, id string, rec snapshot.Record) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	doc, err := js.readRecordDocument(id)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return storageFailure(id, "encode record", err)
	}
	doc[id] = encoded

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return storageFailure(id, "encode record document", err)
	}
	if err := writeFileAtomic(js.recordPath(id), data); err != nil {
		return storageFailure(id, "write record", err)
	}
	return nil
}

// SaveReport writes <id>_changes.json.
func (js *JSONStore) SaveReport(ctx context.Context, id string, report snapshot.ChangeReport) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return storageFailure(id, "encode report", err)
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if err := writeFileAtomic(js.reportPath(id), data); err != nil {
		return storageFailure(id, "write report", err)
	}
	return nil
}

// LoadReport reads <id>_changes.json. An empty document counts as no report.
func (js *JSONStore) LoadReport(ctx context.Context, id string) (snapshot.ChangeReport, bool, error) {
	if err := ValidateIdentifier(id); err != nil {
		return snapshot.ChangeReport{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return snapshot.ChangeReport{}, false, err
	}

	js.mu.RLock()
	defer js.mu.RUnlock()

	// #nosec G304 - path is built from a validated identifier
	data, err := os.ReadFile(js.reportPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot.ChangeReport{}, false, nil
		}
		return snapshot.ChangeReport{}, false, storageFailure(id, "read report", err)
	}
	if isEmptyDocument(data) {
		return snapshot.ChangeReport{}, false, nil
	}

	var report snapshot.ChangeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return snapshot.ChangeReport{}, false, malformed(id, "report", err)
	}
	return report, true, nil
}

// Close is a no-op; files are written synchronously.
func (js *JSONStore) Close() error { return nil }

func (js *JSONStore) readRecordDocument(id string) (map[string]json.RawMessage, error) {
	// #nosec G304 - path is built from a validated identifier
	data, err := os.ReadFile(js.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, storageFailure(id, "read record", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(id, "record document", err)
	}
	if doc == nil {
		return nil, malformed(id, "record document", fmt.Errorf("document is null"))
	}
	return doc, nil
}

func isEmptyDocument(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null"))
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
