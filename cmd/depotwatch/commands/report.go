package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/text/language"

	"git.home.luguber.info/inful/depotwatch/internal/diff"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/report"
	"git.home.luguber.info/inful/depotwatch/internal/store"
)

// ReportCmd implements the 'report' command.
type ReportCmd struct {
	ID      string `arg:"" name:"id" help:"Identifier to report on"`
	Format  string `short:"f" enum:"json,markdown,html" default:"markdown" help:"Output format (json, markdown, html)"`
	Unified bool   `short:"u" help:"Print a unified diff of the stored generations instead of the report"`
	Lang    string `default:"en" help:"Locale for number formatting"`
}

func (r *ReportCmd) Run(g *Global, root *CLI) error {
	if err := store.ValidateIdentifier(r.ID); err != nil {
		return err
	}
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := g.ctx()
	if r.Unified {
		rec, err := st.Load(ctx, r.ID)
		if err != nil {
			return err
		}
		if rec.IsZero() {
			return errors.NotFoundError("no record stored; run track first").WithContext("identifier", r.ID).Build()
		}
		text, err := diff.Unified(rec.Old, rec.Current, diff.DefaultContext)
		if err != nil {
			return errors.InternalError("failed to render diff").WithCause(err).Build()
		}
		_, _ = io.WriteString(g.out(), text)
		return nil
	}

	rep, found, err := st.LoadReport(ctx, r.ID)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFoundError("no report stored; run track first").WithContext("identifier", r.ID).Build()
	}

	tag, err := language.Parse(r.Lang)
	if err != nil {
		return errors.ValidationError("invalid locale").WithContext("lang", r.Lang).WithCause(err).Build()
	}
	renderer := report.NewRenderer(tag)

	out := g.out()
	switch r.Format {
	case "json":
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return errors.InternalError("failed to encode report").WithCause(err).Build()
		}
		_, _ = fmt.Fprintln(out, string(data))
	case "html":
		html, err := renderer.HTML(r.ID, rep)
		if err != nil {
			return errors.InternalError("failed to render report").WithCause(err).Build()
		}
		_, _ = io.WriteString(out, html)
	default:
		_, _ = io.WriteString(out, renderer.Markdown(r.ID, rep))
	}
	return nil
}
