package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

// SQLiteStore keeps records and reports in a single table keyed by identifier.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.ConfigError("sqlite path is empty").Build()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, errors.StorageError("failed to create database directory").
				WithCause(err).
				WithContext("path", dbPath).
				Build()
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.StorageError("could not open sqlite database").
			WithCause(err).
			WithContext("path", dbPath).
			Build()
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.StorageError("failed to initialize sqlite schema").
			WithCause(err).
			WithContext("path", dbPath).
			Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		identifier TEXT PRIMARY KEY,
		record TEXT,
		report TEXT,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the stored record or the zero Record.
func (s *SQLiteStore) Load(ctx context.Context, id string) (snapshot.Record, error) {
	if err := ValidateIdentifier(id); err != nil {
		return snapshot.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var data sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT record FROM records WHERE identifier = ?", id).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		return snapshot.Record{}, nil
	case err != nil:
		return snapshot.Record{}, storageFailure(id, "query record", err)
	case !data.Valid || isEmptyDocument([]byte(data.String)):
		return snapshot.Record{}, nil
	}

	var rec snapshot.Record
	if err := json.Unmarshal([]byte(data.String), &rec); err != nil {
		return snapshot.Record{}, malformed(id, "record", err)
	}
	return rec, nil
}

// Save upserts the record column for id.
func (s *SQLiteStore) Save(ctx context.Context, id string, rec snapshot.Record) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return storageFailure(id, "encode record", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (identifier, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		id, string(data), time.Now().Unix(),
	)
	if err != nil {
		return storageFailure(id, "save record", err)
	}
	return nil
}

// SaveReport upserts the report column for id.
func (s *SQLiteStore) SaveReport(ctx context.Context, id string, report snapshot.ChangeReport) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return storageFailure(id, "encode report", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (identifier, report, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET report = excluded.report, updated_at = excluded.updated_at`,
		id, string(data), time.Now().Unix(),
	)
	if err != nil {
		return storageFailure(id, "save report", err)
	}
	return nil
}

// LoadReport returns the stored report and whether one exists.
func (s *SQLiteStore) LoadReport(ctx context.Context, id string) (snapshot.ChangeReport, bool, error) {
	if err := ValidateIdentifier(id); err != nil {
		return snapshot.ChangeReport{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var data sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT report FROM records WHERE identifier = ?", id).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		return snapshot.ChangeReport{}, false, nil
	case err != nil:
		return snapshot.ChangeReport{}, false, storageFailure(id, "query report", err)
	case !data.Valid || isEmptyDocument([]byte(data.String)):
		return snapshot.ChangeReport{}, false, nil
	}

	var report snapshot.ChangeReport
	if err := json.Unmarshal([]byte(data.String), &report); err != nil {
		return snapshot.ChangeReport{}, false, malformed(id, "report", err)
	}
	return report, true, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
