package daemon

import (
	"maps"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/tracker"
)

// StatusSnapshot is the payload of GET /api/status.
type StatusSnapshot struct {
	Status      Status        `json:"status"`
	StartTime   time.Time     `json:"start_time"`
	Uptime      string        `json:"uptime,omitempty"`
	ConfigFile  string        `json:"config_file,omitempty"`
	Identifiers []string      `json:"identifiers"`
	Interval    string        `json:"interval"`
	Backend     string        `json:"backend"`
	NextRun     *time.Time    `json:"next_run,omitempty"`
	Cycles      []CycleStatus `json:"cycles"`
}

// CycleStatus describes the last cycle run for one identifier.
type CycleStatus struct {
	Identifier      string    `json:"identifier"`
	CycleID         string    `json:"cycle_id,omitempty"`
	Outcome         string    `json:"outcome"`
	LastRun         time.Time `json:"last_run"`
	DurationMS      int64     `json:"duration_ms"`
	ChangeNumber    int64     `json:"change_number,omitempty"`
	OldChangeNumber int64     `json:"old_change_number,omitempty"`
	Rotated         bool      `json:"rotated"`
	Changes         int       `json:"changes"`
	Runs            int       `json:"runs"`
	Failures        int       `json:"failures"`
	LastError       string    `json:"last_error,omitempty"`
	LastErrorCode   string    `json:"last_error_code,omitempty"`
}

// Cycle outcomes reported in CycleStatus.
const (
	OutcomeRotated   = "rotated"
	OutcomeUnchanged = "unchanged"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
)

type statusBoard struct {
	mu     sync.RWMutex
	cycles map[string]CycleStatus
}

func newStatusBoard() *statusBoard {
	return &statusBoard{cycles: make(map[string]CycleStatus)}
}

func (b *statusBoard) record(id string, res *tracker.Result, err error, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.cycles[id]
	st.Identifier = id
	st.LastRun = at
	st.Runs++

	if err != nil {
		st.Outcome = OutcomeFailed
		if errors.IsNotFound(err) {
			st.Outcome = OutcomeNotFound
		} else {
			st.Failures++
		}
		st.LastError = err.Error()
		st.LastErrorCode = string(errors.GetCategory(err))
		st.Rotated = false
		st.Changes = 0
		b.cycles[id] = st
		return
	}

	st.LastError = ""
	st.LastErrorCode = ""
	if res != nil {
		st.CycleID = res.CycleID
		st.DurationMS = res.Duration.Milliseconds()
		st.ChangeNumber = res.Report.LatestChangeNumber
		st.OldChangeNumber = res.Report.OldChangeNumber
		st.Rotated = res.Rotated
		st.Changes = res.Report.Count()
		st.Outcome = OutcomeUnchanged
		if res.Rotated {
			st.Outcome = OutcomeRotated
		}
	}
	b.cycles[id] = st
}

func (b *statusBoard) get(id string) (CycleStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.cycles[id]
	return st, ok
}

func (b *statusBoard) list() []CycleStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]CycleStatus, 0, len(b.cycles))
	for _, id := range slices.Sorted(maps.Keys(b.cycles)) {
		out = append(out, b.cycles[id])
	}
	return out
}
