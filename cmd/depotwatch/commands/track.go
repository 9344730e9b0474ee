package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/depotwatch/internal/config"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/logfields"
	"git.home.luguber.info/inful/depotwatch/internal/notify"
	"git.home.luguber.info/inful/depotwatch/internal/source"
	"git.home.luguber.info/inful/depotwatch/internal/store"
	"git.home.luguber.info/inful/depotwatch/internal/tracker"
)

// TrackCmd implements the 'track' command.
type TrackCmd struct {
	IDs    []string `arg:"" optional:"" name:"id" help:"Identifiers to track (defaults to tracking.identifiers)"`
	DryRun bool     `help:"Run against an in-memory copy of the stored record; nothing is written or published"`
}

func (t *TrackCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}

	ids := t.IDs
	if len(ids) == 0 {
		ids = cfg.Tracking.Identifiers
	}
	if len(ids) == 0 {
		return errors.ValidationError("no identifiers given and none configured").Build()
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	fetcher := source.NewFromConfig(cfg.Source, g.logger())
	if t.DryRun {
		return runDryTrack(g.ctx(), g.out(), g.logger(), st, fetcher, ids)
	}
	return runTrack(g.ctx(), g.out(), g.logger(), cfg, st, fetcher, ids)
}

func runTrack(ctx context.Context, out io.Writer, logger *slog.Logger, cfg *config.Config, st store.Store, fetcher source.Fetcher, ids []string) error {
	var publisher notify.Publisher = notify.Noop{}
	if cfg.Notify.NATS.Enabled {
		nats, err := notify.NewNATSPublisher(cfg.Notify.NATS, logger)
		if err != nil {
			return err
		}
		publisher = nats
	}
	notifier := notify.New(publisher, cfg.Notify.NATS.SubjectPrefix, notify.WithLogger(logger))
	defer func() { _ = notifier.Close() }()

	tr := tracker.New(st, fetcher, tracker.WithAnnouncer(notifier), tracker.WithLogger(logger))
	return trackEach(ctx, out, tr, ids, "")
}

// runDryTrack seeds a memory store with each stored record and runs the cycle
// there, so the real store is only read.
func runDryTrack(ctx context.Context, out io.Writer, logger *slog.Logger, st store.Store, fetcher source.Fetcher, ids []string) error {
	scratch := store.NewMemoryStore()
	for _, id := range ids {
		if err := store.ValidateIdentifier(id); err != nil {
			return err
		}
		rec, err := st.Load(ctx, id)
		if err != nil {
			return err
		}
		if !rec.IsZero() {
			if err := scratch.Save(ctx, id, rec); err != nil {
				return err
			}
		}
	}
	logger.Debug("dry run: using in-memory store", logfields.Backend(store.BackendMemory))

	tr := tracker.New(scratch, fetcher, tracker.WithLogger(logger))
	return trackEach(ctx, out, tr, ids, " (dry run)")
}

func trackEach(ctx context.Context, out io.Writer, tr *tracker.Tracker, ids []string, suffix string) error {
	var errs []error
	for _, id := range ids {
		res, err := tr.RunCycle(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				_, _ = fmt.Fprintf(out, "%s: not found at source\n", id)
			}
			errs = append(errs, err)
			continue
		}
		printResult(out, res, suffix)
	}
	return stderrors.Join(errs...)
}

func printResult(out io.Writer, res *tracker.Result, suffix string) {
	rep := res.Report
	switch {
	case !res.Rotated:
		_, _ = fmt.Fprintf(out, "%s: unchanged at change number %d%s\n", res.Identifier, rep.LatestChangeNumber, suffix)
		return
	case rep.OldChangeNumber == 0:
		_, _ = fmt.Fprintf(out, "%s: first snapshot at change number %d%s\n", res.Identifier, rep.LatestChangeNumber, suffix)
	default:
		_, _ = fmt.Fprintf(out, "%s: change number %d -> %d, %d manifest change(s)%s\n",
			res.Identifier, rep.OldChangeNumber, rep.LatestChangeNumber, rep.Count(), suffix)
	}
	for _, c := range rep.Changes() {
		_, _ = fmt.Fprintf(out, "  depot %s manifest %s: %s -> %s\n", c.Depot, c.Manifest, c.New.OldGID, c.New.GID)
	}
}
