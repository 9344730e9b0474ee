package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/depotwatch/internal/config"
	"git.home.luguber.info/inful/depotwatch/internal/store"
)

// Global carries process-wide state into subcommands.
type Global struct {
	Context context.Context
	Logger  *slog.Logger
	Stdout  io.Writer
}

func (g *Global) ctx() context.Context {
	if g == nil || g.Context == nil {
		return context.Background()
	}
	return g.Context
}

func (g *Global) out() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
	Track  TrackCmd  `cmd:"" help:"Run one tracking cycle per identifier"`
	Watch  WatchCmd  `cmd:"" help:"Track configured identifiers on a schedule and serve the admin API"`
	Report ReportCmd `cmd:"" help:"Show the last change report for an identifier"`
}

// AfterApply runs after flag parsing; setup logging once. Commands that load
// a configuration replace it with the configured handler.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// LoadConfig reads the configuration file (defaults when it does not exist)
// and installs the configured logger.
func (c *CLI) LoadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logging.NewLogger(os.Stderr, c.Verbose)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return cfg, nil
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func openStore(cfg *config.Config) (store.Store, error) {
	return store.New(store.Options{
		Backend:    cfg.Storage.Backend,
		DataDir:    cfg.Storage.DataDir,
		SQLitePath: cfg.Storage.SQLitePath,
	})
}
