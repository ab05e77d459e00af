package camerabody

import (
	"testing"

	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/stretchr/testify/assert"
)

func TestAbsToRelRoundTrip(t *testing.T) {
	t.Parallel()

	b := New35mm(4000, 3000)
	abs := geom.NewPoint2D(1234, 567)
	rel := b.AbsToRel(abs)
	got := b.RelToAbs(rel)
	assert.InDelta(t, abs.X, got.X, 1e-9)
	assert.InDelta(t, abs.Y, got.Y, 1e-9)
}

func TestAbsToRelFlipsYWhenConfigured(t *testing.T) {
	t.Parallel()

	b := New35mm(400, 300)
	rel := b.AbsToRel(geom.NewPoint2D(200, 100))
	// Centre is (200, 150); flip_y negates the Y delta.
	assert.Equal(t, 0.0, rel.X)
	assert.Equal(t, 50.0, rel.Y)
}

func TestAbsToRelWithoutFlip(t *testing.T) {
	t.Parallel()

	b := New(36, 400, 300)
	rel := b.AbsToRel(geom.NewPoint2D(200, 100))
	assert.Equal(t, 0.0, rel.X)
	assert.Equal(t, -50.0, rel.Y)
}

func TestDeriveComputesMMPerPixel(t *testing.T) {
	t.Parallel()

	b := New35mm(3600, 2400)
	assert.InDelta(t, 0.01, b.MMSinglePixelWidth, 1e-12)
	assert.InDelta(t, 0.01, b.MMSinglePixelHeight, 1e-12)
	assert.InDelta(t, 1.0, b.PixelAspectRatio, 1e-12)
}

func TestHasNameMatchesAliases(t *testing.T) {
	t.Parallel()

	b := New35mm(100, 100)
	b.Aliases = []string{"full-frame", "ff"}
	assert.True(t, b.HasName("35mm body"))
	assert.True(t, b.HasName("ff"))
	assert.False(t, b.HasName("aps-c"))
}

func TestMMSensorDiagonal(t *testing.T) {
	t.Parallel()

	b := New35mm(100, 100)
	assert.InDelta(t, 43.266, b.MMSensorDiagonal(), 1e-2)
}
