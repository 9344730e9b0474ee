// Package daemon runs tracking cycles on a schedule for every configured
// identifier, reloads its configuration when the file changes and serves the
// admin HTTP API.
package daemon

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/depotwatch/internal/config"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/logfields"
	"git.home.luguber.info/inful/depotwatch/internal/metrics"
	"git.home.luguber.info/inful/depotwatch/internal/notify"
	"git.home.luguber.info/inful/depotwatch/internal/source"
	"git.home.luguber.info/inful/depotwatch/internal/store"
	"git.home.luguber.info/inful/depotwatch/internal/tracker"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

const trackJobName = "track-identifiers"

// Options supplies collaborators. Nil fields are built from the configuration
// and owned (closed) by the daemon.
type Options struct {
	ConfigPath string
	Store      store.Store
	Fetcher    source.Fetcher
	Publisher  notify.Publisher
	Registry   *prom.Registry
	Logger     *slog.Logger
}

// Daemon represents the main daemon service
type Daemon struct {
	config         *config.Config
	configFilePath string
	status         atomic.Value // Status
	startTime      time.Time
	mu             sync.RWMutex

	// cycleMu serializes cycles between the scheduler and the admin API.
	cycleMu sync.Mutex

	store        store.Store
	fetcher      source.Fetcher
	ownedFetcher bool
	notifier     *notify.Notifier
	recorder     *metrics.PrometheusRecorder
	registry     *prom.Registry
	tracker      *tracker.Tracker
	logger       *slog.Logger
	closers      []io.Closer

	scheduler     *Scheduler
	jobID         string
	configWatcher *ConfigWatcher
	admin         *AdminServer

	runCtx    context.Context
	runCancel context.CancelFunc

	statuses *statusBoard
}

// New creates a daemon for cfg.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.DaemonError("configuration is required").Build()
	}

	d := &Daemon{
		config:         cfg,
		configFilePath: opts.ConfigPath,
		store:          opts.Store,
		fetcher:        opts.Fetcher,
		registry:       opts.Registry,
		logger:         opts.Logger,
		statuses:       newStatusBoard(),
	}
	d.status.Store(StatusStopped)
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.registry == nil {
		d.registry = metrics.NewRegistry()
	}
	d.recorder = metrics.NewPrometheusRecorder(d.registry)

	if d.store == nil {
		st, err := store.New(store.Options{
			Backend:    cfg.Storage.Backend,
			DataDir:    cfg.Storage.DataDir,
			SQLitePath: cfg.Storage.SQLitePath,
		})
		if err != nil {
			return nil, err
		}
		d.store = st
		d.closers = append(d.closers, st)
	}

	if d.fetcher == nil {
		d.fetcher = source.NewFromConfig(cfg.Source, d.logger)
		d.ownedFetcher = true
	}

	publisher := opts.Publisher
	if publisher == nil {
		var err error
		publisher, err = newPublisher(cfg.Notify.NATS, d.logger)
		if err != nil {
			d.closeOwned()
			return nil, err
		}
	}
	d.notifier = notify.New(publisher, cfg.Notify.NATS.SubjectPrefix,
		notify.WithRecorder(d.recorder),
		notify.WithLogger(d.logger))
	if opts.Publisher == nil {
		d.closers = append(d.closers, d.notifier)
	}

	d.tracker = d.newTracker()

	scheduler, err := NewScheduler()
	if err != nil {
		d.closeOwned()
		return nil, errors.DaemonError("failed to create scheduler").WithCause(err).Build()
	}
	d.scheduler = scheduler

	if cfg.Admin.Enabled {
		d.admin = NewAdminServer(d, cfg.Admin)
	}

	if d.configFilePath != "" {
		watcher, err := NewConfigWatcher(d.configFilePath, d)
		if err != nil {
			d.logger.Warn("Config watcher unavailable", logfields.Path(d.configFilePath), logfields.Error(err))
		} else {
			d.configWatcher = watcher
		}
	}

	return d, nil
}

func newPublisher(cfg config.NATSConfig, logger *slog.Logger) (notify.Publisher, error) {
	if !cfg.Enabled {
		return notify.Noop{}, nil
	}
	return notify.NewNATSPublisher(cfg, logger)
}

func (d *Daemon) newTracker() *tracker.Tracker {
	return tracker.New(d.store, d.fetcher,
		tracker.WithAnnouncer(d.notifier),
		tracker.WithRecorder(d.recorder),
		tracker.WithLogger(d.logger))
}

// Start launches the admin server, the scheduler and the config watcher. It
// returns once everything is running; use Run to block until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.GetStatus() != StatusStopped {
		return errors.DaemonError("daemon is not in stopped state").
			WithContext("status", string(d.GetStatus())).
			Build()
	}

	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.runCtx, d.runCancel = context.WithCancel(ctx)

	d.logger.Info("Starting depotwatch daemon",
		slog.Int("identifiers", len(d.config.Tracking.Identifiers)),
		slog.String("interval", d.config.Tracking.IntervalDuration().String()),
		logfields.Backend(d.config.Storage.Backend))

	if d.admin != nil {
		if err := d.admin.Start(d.runCtx); err != nil {
			d.status.Store(StatusError)
			d.runCancel()
			return errors.DaemonError("failed to start admin server").WithCause(err).Build()
		}
	}

	jobID, err := d.scheduler.ScheduleEvery(trackJobName, d.config.Tracking.IntervalDuration(), d.tick)
	if err != nil {
		d.status.Store(StatusError)
		d.runCancel()
		return errors.DaemonError("failed to schedule tracking").WithCause(err).Build()
	}
	d.jobID = jobID
	d.scheduler.Start(d.runCtx)

	if d.configWatcher != nil {
		if err := d.configWatcher.Start(d.runCtx); err != nil {
			d.logger.Error("Failed to start config watcher", logfields.Error(err))
		}
	}

	d.status.Store(StatusRunning)
	d.logger.Info("depotwatch daemon started")
	return nil
}

// Run starts the daemon and blocks until ctx is done, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return d.Stop(stopCtx)
}

// Stop gracefully shuts down the daemon. A cycle in flight observes the
// cancelled context and writes nothing.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	currentStatus := d.GetStatus()
	if currentStatus == StatusStopping {
		d.mu.Unlock()
		return nil
	}
	if currentStatus == StatusStopped {
		// Never started: only release owned resources.
		d.mu.Unlock()
		d.cycleMu.Lock()
		d.closeOwned()
		d.cycleMu.Unlock()
		return nil
	}
	d.status.Store(StatusStopping)
	if d.runCancel != nil {
		d.runCancel()
	}
	startTime := d.startTime
	d.mu.Unlock()

	d.logger.Info("Stopping depotwatch daemon")

	// The scheduler waits for a running tick, which reads d.mu; stop
	// components without holding it.
	if d.configWatcher != nil {
		if err := d.configWatcher.Stop(ctx); err != nil {
			d.logger.Error("Failed to stop config watcher", logfields.Error(err))
		}
	}

	if err := d.scheduler.Stop(ctx); err != nil {
		d.logger.Error("Failed to stop scheduler", logfields.Error(err))
	}

	if d.admin != nil {
		if err := d.admin.Stop(ctx); err != nil {
			d.logger.Error("Failed to stop admin server", logfields.Error(err))
		}
	}

	d.cycleMu.Lock()
	d.closeOwned()
	d.cycleMu.Unlock()

	d.status.Store(StatusStopped)
	d.logger.Info("depotwatch daemon stopped", slog.Duration("uptime", time.Since(startTime)))
	return nil
}

func (d *Daemon) closeOwned() {
	for _, c := range slices.Backward(d.closers) {
		if err := c.Close(); err != nil {
			d.logger.Error("Failed to close resource", logfields.Error(err))
		}
	}
	d.closers = nil
}

// GetStatus returns the current daemon status
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// GetStartTime returns when the daemon was last started.
func (d *Daemon) GetStartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// Store returns the store cycles write to.
func (d *Daemon) Store() store.Store {
	return d.store
}

// Registry returns the Prometheus registry served on /metrics.
func (d *Daemon) Registry() *prom.Registry {
	return d.registry
}

// tick is the scheduled job body.
func (d *Daemon) tick() {
	d.mu.RLock()
	ctx := d.runCtx
	d.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	_ = d.TrackAll(ctx)
}

// TrackAll runs one cycle for every configured identifier, in order.
// A not_found identifier is skipped; other failures are logged and returned
// joined after the remaining identifiers have run.
func (d *Daemon) TrackAll(ctx context.Context) error {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	d.mu.RLock()
	ids := slices.Clone(d.config.Tracking.Identifiers)
	tr := d.tracker
	d.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := d.runCycle(ctx, tr, id); err != nil && !errors.IsNotFound(err) {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// TrackOne runs a single cycle for id, serialized with scheduled cycles.
func (d *Daemon) TrackOne(ctx context.Context, id string) (*tracker.Result, error) {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	d.mu.RLock()
	tr := d.tracker
	d.mu.RUnlock()

	return d.runCycle(ctx, tr, id)
}

func (d *Daemon) runCycle(ctx context.Context, tr *tracker.Tracker, id string) (*tracker.Result, error) {
	res, err := tr.RunCycle(ctx, id)
	d.statuses.record(id, res, err, time.Now())

	switch {
	case err == nil:
	case errors.IsNotFound(err):
		d.logger.Warn("Identifier not found at source, skipping", logfields.Identifier(id))
	default:
		d.logger.Error("Tracking cycle failed", logfields.Identifier(id), logfields.Error(err))
	}
	return res, err
}

// ReloadConfig applies newConfig. Identifiers, interval and source settings
// take effect on the next tick; storage, admin and notification changes need
// a restart and are only reported.
func (d *Daemon) ReloadConfig(_ context.Context, newConfig *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.config
	if newConfig.Version != old.Version {
		return errors.ConfigError("configuration version change requires daemon restart").
			WithContext("old", old.Version).
			WithContext("new", newConfig.Version).
			Build()
	}
	if newConfig.Storage != old.Storage {
		d.logger.Warn("Storage configuration changed; restart to apply")
	}
	if newConfig.Admin != old.Admin {
		d.logger.Warn("Admin configuration changed; restart to apply")
	}
	if newConfig.Notify != old.Notify {
		d.logger.Warn("Notification configuration changed; restart to apply")
	}

	// Keep the settings that cannot change at runtime.
	applied := *newConfig
	applied.Storage = old.Storage
	applied.Admin = old.Admin
	applied.Notify = old.Notify

	if d.ownedFetcher && applied.Source != old.Source {
		d.fetcher = source.NewFromConfig(applied.Source, d.logger)
		d.tracker = d.newTracker()
	}

	newInterval := applied.Tracking.IntervalDuration()
	if d.jobID != "" && newInterval != old.Tracking.IntervalDuration() {
		if err := d.scheduler.Reschedule(d.jobID, trackJobName, newInterval, d.tick); err != nil {
			return errors.DaemonError("failed to reschedule tracking").WithCause(err).Build()
		}
	}

	d.config = &applied
	d.logger.Info("Configuration reloaded",
		slog.Int("identifiers", len(applied.Tracking.Identifiers)),
		slog.String("interval", newInterval.String()))
	return nil
}

// CycleStatus returns the last cycle recorded for id.
func (d *Daemon) CycleStatus(id string) (CycleStatus, bool) {
	return d.statuses.get(id)
}

// Snapshot returns the daemon status for the admin API.
func (d *Daemon) Snapshot() StatusSnapshot {
	d.mu.RLock()
	cfg := d.config
	started := d.startTime
	jobID := d.jobID
	d.mu.RUnlock()

	snap := StatusSnapshot{
		Status:      d.GetStatus(),
		StartTime:   started,
		Identifiers: slices.Clone(cfg.Tracking.Identifiers),
		Interval:    cfg.Tracking.IntervalDuration().String(),
		Backend:     cfg.Storage.Backend,
		ConfigFile:  d.configFilePath,
		Cycles:      d.statuses.list(),
	}
	if !started.IsZero() {
		snap.Uptime = time.Since(started).Round(time.Second).String()
	}
	if jobID != "" {
		if next, ok := d.scheduler.NextRun(jobID); ok {
			snap.NextRun = &next
		}
	}
	return snap
}
