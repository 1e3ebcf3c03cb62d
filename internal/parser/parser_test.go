package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
)

func TestParseAnnouncement(t *testing.T) {
	p := New("")

	ann, err := p.Parse("TimeGuessr #120 46,415/50,000")
	require.NoError(t, err)
	assert.Equal(t, 120, ann.GameNumber)
	assert.Equal(t, 46415, ann.Score)
	assert.Equal(t, 50000, ann.MaxScore)
}

func TestParseEmbeddedInText(t *testing.T) {
	p := New("")

	ann, err := p.Parse("wow great round today!\nTimeGuessr #88 12,345/50,000 so close")
	require.NoError(t, err)
	assert.Equal(t, 88, ann.GameNumber)
	assert.Equal(t, 12345, ann.Score)
}

func TestParseNoSeparators(t *testing.T) {
	p := New("")

	ann, err := p.Parse("TimeGuessr #5 999/1,000")
	require.NoError(t, err)
	assert.Equal(t, 5, ann.GameNumber)
	assert.Equal(t, 999, ann.Score)
	assert.Equal(t, 1000, ann.MaxScore)
}

func TestParseNoMatch(t *testing.T) {
	p := New("")

	cases := []string{
		"no score here",
		"TimeGuessr was fun",
		"TimeGuessr #120",
		"TimeGuessr #120 46415",
		"Worldle #120 400/500",
	}
	for _, content := range cases {
		_, err := p.Parse(content)
		assert.ErrorIs(t, err, domain.ErrNoScoreFound, "content: %q", content)
	}
}

func TestParseCustomTag(t *testing.T) {
	p := New("Worldle")
	require.Equal(t, "Worldle", p.Tag())

	ann, err := p.Parse("Worldle #42 300/500")
	require.NoError(t, err)
	assert.Equal(t, 42, ann.GameNumber)
	assert.Equal(t, 300, ann.Score)
	assert.Equal(t, 500, ann.MaxScore)

	_, err = p.Parse("TimeGuessr #42 300/500")
	assert.ErrorIs(t, err, domain.ErrNoScoreFound)
}

func TestDefaultTag(t *testing.T) {
	assert.Equal(t, DefaultGameTag, New("").Tag())
}

func TestParseMalformedOverflow(t *testing.T) {
	p := New("")

	// Matches the pattern structurally but overflows int conversion.
	_, err := p.Parse("TimeGuessr #1 1,000,000,000,000,000,000,000/50,000")
	assert.ErrorIs(t, err, domain.ErrMalformedScore)
}
