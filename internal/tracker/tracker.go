// Package tracker runs one tracking cycle for an identifier: load the stored
// record, fetch the current snapshot, rotate generations, compute the change
// report and persist both.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/depotwatch/internal/diff"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/logfields"
	"git.home.luguber.info/inful/depotwatch/internal/metrics"
	"git.home.luguber.info/inful/depotwatch/internal/rotation"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
	"git.home.luguber.info/inful/depotwatch/internal/source"
	"git.home.luguber.info/inful/depotwatch/internal/store"
)

// Announcer is told about every cycle that advanced a generation.
type Announcer interface {
	Announce(ctx context.Context, id string, report snapshot.ChangeReport) error
}

// Result describes a completed cycle.
type Result struct {
	CycleID    string
	Identifier string
	Rotated    bool
	Record     snapshot.Record
	Report     snapshot.ChangeReport
	StartedAt  time.Time
	Duration   time.Duration
}

// Tracker runs tracking cycles against one store and one data source.
// It holds no per-identifier state.
type Tracker struct {
	store     store.Store
	fetcher   source.Fetcher
	announcer Announcer
	recorder  metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithAnnouncer sets the announcer for rotated cycles.
func WithAnnouncer(a Announcer) Option {
	return func(t *Tracker) { t.announcer = a }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(t *Tracker) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Tracker.
func New(st store.Store, fetcher source.Fetcher, opts ...Option) *Tracker {
	t := &Tracker{
		store:    st,
		fetcher:  fetcher,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RunCycle performs one cycle for id.
//
// A not_found fetch ends the cycle without touching the store. Nothing is
// written when ctx is done before persistence; once persistence starts, the
// record and report are both written even if ctx is cancelled. The record is
// saved before the report; a failure saving either fails the cycle.
// Announcements happen after persistence and never fail the cycle.
func (t *Tracker) RunCycle(ctx context.Context, id string) (*Result, error) {
	if err := store.ValidateIdentifier(id); err != nil {
		return nil, err
	}

	res := &Result{
		CycleID:    uuid.NewString(),
		Identifier: id,
		StartedAt:  t.now(),
	}
	logger := t.logger.With(logfields.CycleID(res.CycleID), logfields.Identifier(id))

	finish := func(outcome metrics.OutcomeLabel) {
		res.Duration = t.now().Sub(res.StartedAt)
		t.recorder.IncCycleOutcome(outcome)
		t.recorder.ObserveCycleDuration(res.Duration)
	}

	rec, err := t.store.Load(ctx, id)
	if err != nil {
		finish(outcomeFor(ctx, err))
		logger.Error("failed to load record", logfields.Error(err))
		return nil, err
	}

	fetchStart := t.now()
	fetched, err := t.fetcher.Fetch(ctx, id)
	t.recorder.ObserveFetchDuration(t.now().Sub(fetchStart), err == nil)
	if err != nil {
		finish(outcomeFor(ctx, err))
		if errors.IsNotFound(err) {
			logger.Warn("identifier not found at data source")
		} else {
			logger.Error("fetch failed", logfields.Error(err))
		}
		return nil, err
	}

	next, rotated := rotation.Rotate(fetched, rec)
	report := diff.Compute(next.Old, next.Current)

	if err := ctx.Err(); err != nil {
		finish(metrics.OutcomeCanceled)
		return nil, err
	}

	// Record and report are written together; cancellation from here on
	// must not split them.
	commitCtx := context.WithoutCancel(ctx)
	if err := t.store.Save(commitCtx, id, next); err != nil {
		finish(metrics.OutcomeFailed)
		logger.Error("failed to save record", logfields.Error(err))
		return nil, err
	}
	if err := t.store.SaveReport(commitCtx, id, report); err != nil {
		finish(metrics.OutcomeFailed)
		logger.Error("failed to save report", logfields.Error(err))
		return nil, err
	}

	res.Rotated = rotated
	res.Record = next
	res.Report = report

	outcome := metrics.OutcomeUnchanged
	if rotated {
		outcome = metrics.OutcomeRotated
		t.recorder.AddChangedManifests(report.Count())
	}
	t.recorder.SetChangeNumber(id, next.Current.ChangeNumber)
	finish(outcome)

	logger.Info("tracking cycle complete",
		logfields.Rotated(rotated),
		logfields.ChangeNumber(report.LatestChangeNumber),
		logfields.OldChangeNumber(report.OldChangeNumber),
		logfields.Changes(report.Count()),
		logfields.DurationMS(float64(res.Duration.Microseconds())/1000))

	if rotated && t.announcer != nil {
		if err := t.announcer.Announce(commitCtx, id, report); err != nil {
			logger.Warn("failed to announce changes", logfields.Error(err))
		}
	}

	return res, nil
}

func outcomeFor(ctx context.Context, err error) metrics.OutcomeLabel {
	switch {
	case ctx.Err() != nil:
		return metrics.OutcomeCanceled
	case errors.IsNotFound(err):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeFailed
	}
}
