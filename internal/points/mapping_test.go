package points

import (
	"testing"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/camerabody"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/lens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityCamera() *camera.Instance {
	body := camerabody.New35mm(4000, 3000)
	l := lens.CameraLens{
		Name:          "identity",
		FocalLengthMM: 50,
		Lens: lens.Lens{
			Forward: lens.Polynomial{Coeffs: []float64{0, 1}},
			Inverse: lens.Polynomial{Coeffs: []float64{0, 1}},
		},
	}
	return camera.New(body, l, 1e6*50, geom.NewPoint3D(0, 0, 0), geom.Identity)
}

func TestPointMappingSetAddResolvesAgainstNamedPointSet(t *testing.T) {
	t.Parallel()

	nps := NewNamedPointSet()
	nps.AddPoint("corner", Black, &Model{Position: geom.NewPoint3D(1, 1, 10)})

	pms := NewPointMappingSet()
	ok := pms.Add(nps, "corner", geom.NewPoint2D(2000, 1500), 2.0)
	require.True(t, ok)
	assert.Equal(t, 1, pms.Len())

	ok = pms.Add(nps, "missing", geom.NewPoint2D(0, 0), 2.0)
	assert.False(t, ok)
	assert.Equal(t, 1, pms.Len())
}

func TestRebuildWithNamedPointSetDropsUnresolvedReferences(t *testing.T) {
	t.Parallel()

	nps := NewNamedPointSet()
	nps.AddPoint("keep", Black, nil)

	pms := NewPointMappingSet()
	pms.Add(nps, "keep", geom.NewPoint2D(10, 10), 1.0)

	otherNp := NewNamedPoint("gone", Black, nil)
	pms.mappings = append(pms.mappings, NewPointMapping(otherNp, geom.NewPoint2D(5, 5), 1.0))

	removed := pms.RebuildWithNamedPointSet(nps)
	require.Len(t, removed, 1)
	assert.Equal(t, "gone", removed[0].Name())
	assert.Equal(t, 1, pms.Len())

	warning := UnresolvedWarning(removed)
	assert.Contains(t, warning, "gone")
}

func TestMappedDPXYOfExactProjectionIsZero(t *testing.T) {
	t.Parallel()

	c := identityCamera()
	world := geom.NewPoint3D(1, 0.5, 10)
	px, ok := c.WorldToPxAbsXY(world)
	require.True(t, ok)

	nps := NewNamedPointSet()
	nps.AddPoint("p", Black, &Model{Position: world})
	pms := NewPointMappingSet()
	pms.Add(nps, "p", px, 1.0)

	dpxy, ok := pms.Mappings()[0].MappedDPXY(c)
	require.True(t, ok)
	assert.InDelta(t, 0, dpxy.X, 1e-6)
	assert.InDelta(t, 0, dpxy.Y, 1e-6)
}

func TestTotalErrorAndWorstError(t *testing.T) {
	t.Parallel()

	c := identityCamera()
	world1 := geom.NewPoint3D(1, 0.5, 10)
	world2 := geom.NewPoint3D(-1, -0.5, 10)
	px1, _ := c.WorldToPxAbsXY(world1)
	px2, _ := c.WorldToPxAbsXY(world2)

	nps := NewNamedPointSet()
	nps.AddPoint("good", Black, &Model{Position: world1})
	nps.AddPoint("bad", Black, &Model{Position: world2})

	pms := NewPointMappingSet()
	pms.Add(nps, "good", px1, 1.0)
	// Perturb the observed pixel for "bad" so it has nonzero error.
	pms.Add(nps, "bad", px2.Add(geom.NewPoint2D(20, 0)), 1.0)

	worstIdx, worstErr := pms.FindWorstError(c)
	assert.Equal(t, 1, worstIdx)
	assert.Greater(t, worstErr, 0.0)

	total := pms.TotalError(c)
	assert.GreaterOrEqual(t, total, worstErr)
}

func TestCentroidOfScreenPoints(t *testing.T) {
	t.Parallel()

	nps := NewNamedPointSet()
	nps.AddPoint("a", Black, nil)
	nps.AddPoint("b", Black, nil)

	pms := NewPointMappingSet()
	pms.Add(nps, "a", geom.NewPoint2D(0, 0), 1.0)
	pms.Add(nps, "b", geom.NewPoint2D(10, 20), 1.0)

	cog := pms.CentroidOfScreenPoints()
	assert.InDelta(t, 5, cog.X, 1e-9)
	assert.InDelta(t, 10, cog.Y, 1e-9)
}

func TestMappedRayFromCameraPointsTowardModel(t *testing.T) {
	t.Parallel()

	c := identityCamera()
	world := geom.NewPoint3D(2, 0, -10)
	px, _ := c.WorldToPxAbsXY(world)

	nps := NewNamedPointSet()
	nps.AddPoint("p", Black, &Model{Position: world})
	pms := NewPointMappingSet()
	pms.Add(nps, "p", px, 2.0)

	r := pms.Mappings()[0].MappedRay(c, true)
	assert.True(t, r.Start.Eq(c.Position))
	expectedDir := world.Sub(c.Position).Normalize()
	assert.InDelta(t, expectedDir.X, r.Direction.X, 1e-6)
	assert.InDelta(t, expectedDir.Y, r.Direction.Y, 1e-6)
	assert.InDelta(t, expectedDir.Z, r.Direction.Z, 1e-6)
	assert.Greater(t, r.TanError, 0.0)
}

func TestPointMappingSetJSONRoundTrip(t *testing.T) {
	t.Parallel()

	nps := NewNamedPointSet()
	nps.AddPoint("a", Black, nil)
	nps.AddPoint("b", Black, nil)

	pms := NewPointMappingSet()
	pms.Add(nps, "a", geom.NewPoint2D(10, 20), 1.5)
	pms.Add(nps, "b", geom.NewPoint2D(30, 40), 2.5)

	data, err := pms.Save()
	require.NoError(t, err)

	parsed, warnings, err := LoadPointMappingSet(data, nps)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Equal(t, 2, parsed.Len())
	assert.Equal(t, "a", parsed.Mappings()[0].Name())
	assert.Equal(t, 30.0, parsed.Mappings()[1].Screen.X)
}

func TestLoadPointMappingSetReportsUnresolvedReferences(t *testing.T) {
	t.Parallel()

	nps := NewNamedPointSet()
	nps.AddPoint("known", Black, nil)

	data := []byte(`[["known", [1, 2], 0.5], ["ghost", [3, 4], 0.5]]`)
	parsed, warnings, err := LoadPointMappingSet(data, nps)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, 1, parsed.Len())
}
