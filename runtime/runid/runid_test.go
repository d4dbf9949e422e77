package runid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowctl/agentrun/runtime/runid"
)

func TestNewAndParse(t *testing.T) {
	id := runid.New()
	assert.Regexp(t, `^run_[0-9]+_[0-9a-z]{8}$`, id)

	parsed, err := runid.Parse(id)
	require.NoError(t, err)
	assert.False(t, parsed.Timestamp.IsZero())
	assert.Len(t, parsed.Random, 8)
}

func TestParse_Malformed(t *testing.T) {
	cases := []string{"", "run_123", "nope_123_abcdefgh", "run_abc_abcdefgh", "run_123_short", "run_123_UPPERCASE"}
	for _, c := range cases {
		_, err := runid.Parse(c)
		assert.Error(t, err, "input %q", c)
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := runid.New()
		assert.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}
