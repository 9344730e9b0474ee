// Package store persists tracked records and change reports by identifier.
package store

import (
	"context"
	"regexp"

	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

// Store persists one record and one report per identifier.
//
// Implementations must be safe for concurrent use. Writes are full overwrites,
// so saving the same value twice leaves the store unchanged.
type Store interface {
	// Load returns the stored record, or the zero Record if nothing is stored.
	// Malformed persisted data yields a malformed_state error.
	Load(ctx context.Context, id string) (snapshot.Record, error)

	// Save overwrites the stored record.
	Save(ctx context.Context, id string, rec snapshot.Record) error

	// SaveReport overwrites the stored report.
	SaveReport(ctx context.Context, id string, report snapshot.ChangeReport) error

	// LoadReport returns the stored report and whether one exists.
	LoadReport(ctx context.Context, id string) (snapshot.ChangeReport, bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// Backend names accepted by New.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateIdentifier rejects identifiers that cannot be used as file names or keys.
func ValidateIdentifier(id string) error {
	if id == "" || id == "." || id == ".." || !identifierPattern.MatchString(id) {
		return errors.ValidationError("invalid identifier").
			WithContext("identifier", id).
			Build()
	}
	return nil
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	DataDir    string
	SQLitePath string
}

// New opens the backend named in opts.
func New(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendJSON:
		return NewJSONStore(opts.DataDir)
	case BackendSQLite:
		return NewSQLiteStore(opts.SQLitePath)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.ConfigError("unknown storage backend").
			WithContext("backend", opts.Backend).
			Build()
	}
}

func malformed(id string, what string, cause error) error {
	return errors.MalformedStateError("malformed persisted "+what).
		WithCause(cause).
		WithContext("identifier", id).
		Build()
}

func storageFailure(id string, op string, cause error) error {
	return errors.StorageError(op+" failed").
		WithCause(cause).
		WithContext("identifier", id).
		Build()
}
