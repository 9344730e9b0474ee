package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backoff string

const (
	backoffFixed  backoff = "fixed"
	backoffLinear backoff = "linear"
)

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(map[string]backoff{
		"Fixed":  backoffFixed,
		"linear": backoffLinear,
	}, backoffLinear)

	tests := []struct {
		name  string
		input string
		want  backoff
	}{
		{"exact", "linear", backoffLinear},
		{"key case folded", "fixed", backoffFixed},
		{"input case folded", "FIXED", backoffFixed},
		{"whitespace", "  fixed\t", backoffFixed},
		{"unknown falls back", "cubic", backoffLinear},
		{"empty falls back", "", backoffLinear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}

	assert.Equal(t, []string{"fixed", "linear"}, n.ValidKeys())
}

func TestNormalizeWithError(t *testing.T) {
	n := NewNormalizer(map[string]backoff{"fixed": backoffFixed}, "")

	got, err := n.NormalizeWithError(" Fixed ")
	require.NoError(t, err)
	assert.Equal(t, backoffFixed, got)

	_, err = n.NormalizeWithError("cubic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"cubic"`)
	assert.Contains(t, err.Error(), "[fixed]")
}

func TestEnumNormalizer(t *testing.T) {
	e := NewEnumNormalizer("storage backend", map[string]string{"json": "json", "sqlite": "sqlite"}, "")

	got, err := e.NormalizeWithValidation("SQLite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", got)

	_, err = e.NormalizeWithValidation("redis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid storage backend")
	assert.Contains(t, err.Error(), "[json sqlite]")
}
