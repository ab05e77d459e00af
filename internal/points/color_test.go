package points

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColorRGB(t *testing.T) {
	t.Parallel()

	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, Color{R: 0xff, G: 0x80, B: 0x00, A: 0xff}, c)
}

func TestParseColorARGB(t *testing.T) {
	t.Parallel()

	c, err := ParseColor("#80ff8000")
	require.NoError(t, err)
	assert.Equal(t, Color{A: 0x80, R: 0xff, G: 0x80, B: 0x00}, c)
}

func TestParseColorRejectsMissingHash(t *testing.T) {
	t.Parallel()

	_, err := ParseColor("ff8000")
	assert.Error(t, err)
}

func TestParseColorRejectsBadLength(t *testing.T) {
	t.Parallel()

	_, err := ParseColor("#fff")
	assert.Error(t, err)
}

func TestParseColorRejectsNonHex(t *testing.T) {
	t.Parallel()

	_, err := ParseColor("#zzzzzz")
	assert.Error(t, err)
}

func TestColorEq(t *testing.T) {
	t.Parallel()

	a, _ := ParseColor("#112233")
	b, _ := ParseColor("#112233")
	c, _ := ParseColor("#112234")
	assert.True(t, a.Eq(b))
	assert.False(t, a.Eq(c))
}
