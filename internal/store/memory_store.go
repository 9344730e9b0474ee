package store

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

// MemoryStore is an in-memory Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]snapshot.Record
	reports map[string]snapshot.ChangeReport
	calls   MemoryCalls

	// LoadErr, SaveErr and SaveReportErr, when set, are returned by the
	// matching method instead of touching state.
	LoadErr       error
	SaveErr       error
	SaveReportErr error
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Load       int
	Save       int
	SaveReport int
	LoadReport int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]snapshot.Record),
		reports: make(map[string]snapshot.ChangeReport),
	}
}

// Load returns the stored record or the zero Record.
func (m *MemoryStore) Load(ctx context.Context, id string) (snapshot.Record, error) {
	if err := ValidateIdentifier(id); err != nil {
		return snapshot.Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Load++

	if m.LoadErr != nil {
		return snapshot.Record{}, m.LoadErr
	}
	return m.records[id], nil
}

// Save stores rec under id.
func (m *MemoryStore) Save(ctx context.Context, id string, rec snapshot.Record) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Save++

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.records[id] = rec
	return nil
}

// SaveReport stores report under id.
func (m *MemoryStore) SaveReport(ctx context.Context, id string, report snapshot.ChangeReport) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.SaveReport++

	if m.SaveReportErr != nil {
		return m.SaveReportErr
	}
	m.reports[id] = report
	return nil
}

// LoadReport returns the stored report and whether one exists.
func (m *MemoryStore) LoadReport(ctx context.Context, id string) (snapshot.ChangeReport, bool, error) {
	if err := ValidateIdentifier(id); err != nil {
		return snapshot.ChangeReport{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.LoadReport++

	report, ok := m.reports[id]
	return report, ok, nil
}

// Calls returns a copy of the invocation counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
