package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/depotwatch/internal/daemon"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Once bool `help:"Track every configured identifier once and exit"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}

	opts := daemon.Options{Logger: g.logger()}
	if w.Once {
		// A single pass needs no admin server or config reload.
		cfg.Admin.Enabled = false
	} else {
		opts.ConfigPath = root.Config
	}

	d, err := daemon.New(cfg, opts)
	if err != nil {
		return err
	}

	if w.Once {
		defer func() { _ = d.Stop(context.Background()) }()
		return d.TrackAll(g.ctx())
	}

	ctx, cancel := signal.NotifyContext(g.ctx(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("Daemon starting, waiting for shutdown signal...")
	start := time.Now()
	if err := d.Run(ctx); err != nil {
		return err
	}
	slog.Info("Daemon stopped successfully", slog.Duration("uptime", time.Since(start)))
	return nil
}
