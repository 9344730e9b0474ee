// Package notify announces detected changes to subscribers.
//
// After a cycle that advanced a generation, two kinds of messages may be sent:
//
//	<prefix>.changenumber  when the change number moved
//	<prefix>.depots        when manifest entries changed
//
// Cycles that did not rotate are never announced, so each report is sent once.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/logfields"
	"git.home.luguber.info/inful/depotwatch/internal/metrics"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

// Message kinds, also used as subject suffixes.
const (
	KindChangeNumber = "changenumber"
	KindDepots       = "depots"
)

// Publisher delivers a payload on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// ChangeNumberMessage announces a change number update.
type ChangeNumberMessage struct {
	Identifier string    `json:"identifier"`
	Old        int64     `json:"old"`
	Latest     int64     `json:"latest"`
	Timestamp  time.Time `json:"timestamp"`
}

// ManifestChange is one changed manifest entry.
type ManifestChange struct {
	Depot    string         `json:"depot"`
	Manifest string         `json:"manifest"`
	GID      snapshot.Value `json:"gid"`
	OldGID   snapshot.Value `json:"old_gid"`
	Size     snapshot.Size  `json:"size"`
}

// DepotsMessage announces changed manifest entries.
type DepotsMessage struct {
	Identifier string           `json:"identifier"`
	Latest     int64            `json:"latest"`
	Changes    []ManifestChange `json:"changes"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Notifier turns change reports into messages.
type Notifier struct {
	publisher Publisher
	prefix    string
	recorder  metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithRecorder records notification outcomes.
func WithRecorder(r metrics.Recorder) Option {
	return func(n *Notifier) {
		if r != nil {
			n.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Notifier publishing under prefix.
func New(publisher Publisher, prefix string, opts ...Option) *Notifier {
	n := &Notifier{
		publisher: publisher,
		prefix:    prefix,
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Announce publishes the messages warranted by report. Both messages are
// attempted; the first failure is returned.
func (n *Notifier) Announce(ctx context.Context, id string, report snapshot.ChangeReport) error {
	var firstErr error

	if report.ChangeNumberChanged() {
		msg := ChangeNumberMessage{
			Identifier: id,
			Old:        report.OldChangeNumber,
			Latest:     report.LatestChangeNumber,
			Timestamp:  n.now().UTC(),
		}
		if err := n.send(ctx, id, KindChangeNumber, msg); err != nil {
			firstErr = err
		}
	}

	if report.HasChanges() {
		msg := DepotsMessage{
			Identifier: id,
			Latest:     report.LatestChangeNumber,
			Changes:    ManifestChanges(report),
			Timestamp:  n.now().UTC(),
		}
		if err := n.send(ctx, id, KindDepots, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Close closes the underlying publisher.
func (n *Notifier) Close() error {
	return n.publisher.Close()
}

// Subject returns the subject used for kind.
func (n *Notifier) Subject(kind string) string {
	return n.prefix + "." + kind
}

func (n *Notifier) send(ctx context.Context, id, kind string, msg any) error {
	subject := n.Subject(kind)
	data, err := json.Marshal(msg)
	if err != nil {
		n.recorder.IncNotification(kind, false)
		return errors.NotifyError("failed to encode notification").
			WithCause(err).
			WithContext("subject", subject).
			Build()
	}
	if err := n.publisher.Publish(ctx, subject, data); err != nil {
		n.recorder.IncNotification(kind, false)
		return errors.NotifyError("failed to publish notification").
			WithCause(err).
			WithContext("subject", subject).
			WithContext("identifier", id).
			Build()
	}
	n.recorder.IncNotification(kind, true)
	n.logger.Debug("published notification", logfields.Identifier(id), logfields.Subject(subject))
	return nil
}

// ManifestChanges flattens a report into sorted message entries.
func ManifestChanges(report snapshot.ChangeReport) []ManifestChange {
	changes := report.Changes()
	out := make([]ManifestChange, 0, len(changes))
	for _, c := range changes {
		out = append(out, ManifestChange{
			Depot:    c.Depot,
			Manifest: c.Manifest,
			GID:      c.New.GID,
			OldGID:   c.New.OldGID,
			Size:     c.New.Size,
		})
	}
	return out
}
