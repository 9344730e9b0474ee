// Package report renders change reports for people: a Markdown summary and
// its HTML conversion.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

// Renderer formats reports for one locale.
type Renderer struct {
	printer *message.Printer
	md      goldmark.Markdown
}

// NewRenderer creates a renderer for tag. Numbers use the locale's digit grouping.
func NewRenderer(tag language.Tag) *Renderer {
	return &Renderer{
		printer: message.NewPrinter(tag),
		md:      goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Markdown renders a summary of report for identifier id.
func (r *Renderer) Markdown(id string, report snapshot.ChangeReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Changes for %s\n\n", id)
	if report.ChangeNumberChanged() {
		b.WriteString(r.printer.Sprintf("Change number **%d** → **%d**\n\n", report.OldChangeNumber, report.LatestChangeNumber))
	} else {
		b.WriteString(r.printer.Sprintf("Change number **%d** (unchanged)\n\n", report.LatestChangeNumber))
	}

	changes := report.Changes()
	if len(changes) == 0 {
		b.WriteString("No manifest changes.\n")
		return b.String()
	}

	b.WriteString(r.printer.Sprintf("%d manifest changes:\n\n", len(changes)))
	b.WriteString("| Depot | Manifest | Old gid | New gid | Size |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, c := range changes {
		fmt.Fprintf(&b, "| %s | %s | `%s` | `%s` | %s |\n",
			escapeCell(c.Depot),
			escapeCell(c.Manifest),
			escapeCell(valueText(c.New.OldGID)),
			escapeCell(valueText(c.New.GID)),
			r.FormatSize(c.New.Size),
		)
	}
	return b.String()
}

// HTML renders the Markdown summary as an HTML fragment.
func (r *Renderer) HTML(id string, report snapshot.ChangeReport) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(r.Markdown(id, report)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

var sizeUnits = []string{"B", "KiB", "MiB", "GiB", "TiB"}

// FormatSize renders a byte count with a binary unit.
func (r *Renderer) FormatSize(size snapshot.Size) string {
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return r.printer.Sprintf("%d %s", int64(size), sizeUnits[0])
	}
	return r.printer.Sprintf("%.1f %s", value, sizeUnits[unit])
}

func valueText(v snapshot.Value) string {
	if v.IsZero() {
		return "-"
	}
	return v.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
