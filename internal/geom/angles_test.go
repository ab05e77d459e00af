package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTanXTanYRollYawRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []TanXTanY{
		{TX: 0.1, TY: 0.2},
		{TX: -0.5, TY: 0.05},
		{TX: 0, TY: 0},
		{TX: 1.3, TY: -0.9},
	}
	for _, c := range cases {
		got := c.RollYaw().TanXTanY()
		assert.InDelta(t, c.TX, got.TX, 1e-12)
		assert.InDelta(t, c.TY, got.TY, 1e-12)
	}
}

func TestRollYawOnAxisClamp(t *testing.T) {
	t.Parallel()

	r := TanXTanY{TX: 0, TY: 0}.RollYaw()
	assert.Equal(t, 0.0, r.SinRoll)
	assert.Equal(t, 1.0, r.CosRoll)
	assert.Equal(t, 0.0, r.TanYaw)
}

func TestRollYawInvariant(t *testing.T) {
	t.Parallel()

	r := TanXTanY{TX: 0.3, TY: 0.7}.RollYaw()
	assert.InDelta(t, 1.0, r.SinRoll*r.SinRoll+r.CosRoll*r.CosRoll, 1e-12)
}

func TestTanXTanYUnit(t *testing.T) {
	t.Parallel()

	u := TanXTanY{TX: 1, TY: 1}.Unit()
	assert.InDelta(t, 1.0, u.Length(), 1e-12)
	assert.InDelta(t, 1.0/math.Sqrt(3), u.X, 1e-12)
}

func TestDirectionTanXTanYGuardsNearZeroZ(t *testing.T) {
	t.Parallel()

	_, ok := DirectionTanXTanY(NewPoint3D(1, 1, 1e-9))
	assert.False(t, ok)

	got, ok := DirectionTanXTanY(NewPoint3D(2, 4, 2))
	assert.True(t, ok)
	assert.Equal(t, TanXTanY{TX: 1, TY: 2}, got)
}
