package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/depotwatch/cmd/depotwatch/commands"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli := &commands.CLI{}
	parser, err := kong.New(cli,
		kong.Name("depotwatch"),
		kong.Description("Track change numbers and depot manifests of remote snapshots and report what changed between generations."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	if err != nil {
		return errors.NewCLIErrorAdapter(false, nil).Report(errors.InternalError("failed to build command line").WithCause(err).Build())
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
	}

	global := &commands.Global{Context: context.Background(), Logger: slog.Default(), Stdout: os.Stdout}
	err = kctx.Run(global, cli)
	return errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err)
}
