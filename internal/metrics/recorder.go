package metrics

import "time"

// OutcomeLabel enumerates tracking cycle outcomes for counters.
type OutcomeLabel string

const (
	OutcomeRotated   OutcomeLabel = "rotated"
	OutcomeUnchanged OutcomeLabel = "unchanged"
	OutcomeNotFound  OutcomeLabel = "not_found"
	OutcomeFailed    OutcomeLabel = "failed"
	OutcomeCanceled  OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for tracking cycles. Implementations
// may forward to Prometheus or anything else.
type Recorder interface {
	ObserveCycleDuration(d time.Duration)
	IncCycleOutcome(outcome OutcomeLabel)
	ObserveFetchDuration(d time.Duration, success bool)
	AddChangedManifests(n int)
	SetChangeNumber(identifier string, changeNumber int64)
	IncNotification(kind string, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCycleDuration(time.Duration)       {}
func (NoopRecorder) IncCycleOutcome(OutcomeLabel)             {}
func (NoopRecorder) ObserveFetchDuration(time.Duration, bool) {}
func (NoopRecorder) AddChangedManifests(int)                  {}
func (NoopRecorder) SetChangeNumber(string, int64)            {}
func (NoopRecorder) IncNotification(string, bool)             {}
