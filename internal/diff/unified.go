package diff

import (
	"encoding/json"
	"fmt"

	difflib "github.com/pmezard/go-difflib/difflib"

	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

// DefaultContext is the number of context lines in unified hunks.
const DefaultContext = 3

// Unified renders both generations as indented JSON and returns a unified
// patch between them. An empty string means the generations are identical.
func Unified(old, current snapshot.Snapshot, context int) (string, error) {
	if context <= 0 {
		context = DefaultContext
	}

	a, err := json.MarshalIndent(old, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode old generation: %w", err)
	}
	b, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode current generation: %w", err)
	}

	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: fmt.Sprintf("changenumber/%d", old.ChangeNumber),
		ToFile:   fmt.Sprintf("changenumber/%d", current.ChangeNumber),
		Context:  context,
	}
	return difflib.GetUnifiedDiffString(u)
}
