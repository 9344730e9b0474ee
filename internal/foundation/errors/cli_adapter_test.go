package errors

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"unclassified", stdErrors.New("boom"), 1},
		{"validation", ValidationError("x").Build(), 2},
		{"not found", NotFoundError("x").Build(), 3},
		{"wrapped not found", fmt.Errorf("cycle: %w", NotFoundError("x").Build()), 3},
		{"malformed", MalformedStateError("x").Build(), 4},
		{"config", ConfigError("x").Build(), 7},
		{"network", NetworkError("x").Build(), 8},
		{"storage", StorageError("x").Build(), 11},
		{"daemon", DaemonError("x").Build(), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	err := NotFoundError("App not found").WithContext("identifier", "730").Build()
	assert.Equal(t, "Error: App not found (identifier 730)", quiet.FormatError(err))
	assert.Contains(t, verbose.FormatError(err), "[not_found:warning]")

	internal := InternalError("nil snapshot").Build()
	assert.Equal(t, "Internal error occurred (use -v for details)", quiet.FormatError(internal))
	assert.Equal(t, "Error: boom", quiet.FormatError(stdErrors.New("boom")))
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var logs, stderr bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.stderr = &stderr

	code := adapter.Report(ConfigError("missing tracking.identifiers").Build())

	assert.Equal(t, 7, code)
	assert.Contains(t, stderr.String(), "missing tracking.identifiers")
	assert.Contains(t, logs.String(), "category=config")
}
