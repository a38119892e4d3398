package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenyMatchesFirst(t *testing.T) {
	p, err := New([]string{"*"}, []string{"*browser*"})
	require.NoError(t, err)

	d := p.Decide("Browser")
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "deny pattern")
}

func TestAllowAfterDenyMiss(t *testing.T) {
	p, err := New([]string{"editor", "terminal"}, []string{"*chat*"})
	require.NoError(t, err)

	assert.True(t, p.Decide("Editor").Allowed)
	assert.True(t, p.Decide("terminal").Allowed)
}

func TestDefaultDeny(t *testing.T) {
	p, err := New([]string{"editor"}, nil)
	require.NoError(t, err)

	d := p.Decide("unknown-app")
	assert.False(t, d.Allowed)
	assert.Equal(t, "no matching pattern", d.Reason)
}

func TestInvalidPatternRejected(t *testing.T) {
	_, err := New([]string{"[unclosed"}, nil)
	assert.Error(t, err)
}
