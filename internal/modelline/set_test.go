package modelline

import (
	"math"
	"testing"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/camerabody"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/lens"
	"github.com/meridian-optics/photocal/internal/points"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCamera(position geom.Point3D) *camera.Instance {
	body := camerabody.New35mm(4000, 3000)
	l := lens.CameraLens{
		Name:          "identity",
		FocalLengthMM: 50,
		Lens: lens.Lens{
			Forward: lens.Polynomial{Coeffs: []float64{0, 1}},
			Inverse: lens.Polynomial{Coeffs: []float64{0, 1}},
		},
	}
	return camera.New(body, l, 1e6*50, position, geom.Identity)
}

func TestSetAddLineDerivesAngleFromMappings(t *testing.T) {
	t.Parallel()

	c := testCamera(geom.NewPoint3D(0, 0, 0))
	world0 := geom.NewPoint3D(-1, 0, 10)
	world1 := geom.NewPoint3D(1, 0, 10)
	px0, _ := c.WorldToPxAbsXY(world0)
	px1, _ := c.WorldToPxAbsXY(world1)

	nps := points.NewNamedPointSet()
	nps.AddPoint("p0", points.Black, &points.Model{Position: world0})
	nps.AddPoint("p1", points.Black, &points.Model{Position: world1})

	pms := points.NewPointMappingSet()
	pms.Add(nps, "p0", px0, 1.0)
	pms.Add(nps, "p1", px1, 1.0)

	set := NewSet()
	ok := set.AddLine(c, pms.Mappings()[0], pms.Mappings()[1])
	require.True(t, ok)
	require.Equal(t, 1, set.Len())

	// The angle subtended at the origin by two points symmetric about the
	// Z axis at (-1,0,10) and (1,0,10) is 2*atan(1/10).
	expected := 2 * math.Atan(1.0/10.0)
	assert.InDelta(t, expected, set.Lines()[0].Theta, 1e-6)
}

func TestSetAddLineRejectsUnmappedPoints(t *testing.T) {
	t.Parallel()

	c := testCamera(geom.NewPoint3D(0, 0, 0))
	nps := points.NewNamedPointSet()
	nps.AddPoint("unmapped", points.Black, nil)
	pms := points.NewPointMappingSet()
	pms.Add(nps, "unmapped", geom.NewPoint2D(0, 0), 1.0)

	set := NewSet()
	ok := set.AddLine(c, pms.Mappings()[0], pms.Mappings()[0])
	assert.False(t, ok)
	assert.Equal(t, 0, set.Len())
}

func TestSetAddLineOfModelsRejectsCoincidentPoints(t *testing.T) {
	t.Parallel()

	set := NewSet()
	p := geom.NewPoint3D(1, 2, 3)
	ok := set.AddLineOfModels(p, p, 1.0)
	assert.False(t, ok)
}

func TestFindBestMinErrLocationRecoversKnownPosition(t *testing.T) {
	t.Parallel()

	truePos := geom.NewPoint3D(0, 0, -50)

	corners := []geom.Point3D{
		geom.NewPoint3D(-1, -1, 0),
		geom.NewPoint3D(1, -1, 0),
		geom.NewPoint3D(1, 1, 0),
		geom.NewPoint3D(-1, 1, 0),
	}

	set := NewSet()
	for i := 0; i < len(corners); i++ {
		for j := i + 1; j < len(corners); j++ {
			d0 := corners[i].Sub(truePos).Normalize()
			d1 := corners[j].Sub(truePos).Normalize()
			cosTheta := d0.Dot(d1)
			theta := math.Acos(cosTheta)
			set.AddLineOfModels(corners[i], corners[j], theta)
		}
	}

	best, err := set.FindBestMinErrLocation(64, 64)
	assert.Less(t, err, 1e-3)
	// The sampled surface is discrete and symmetric about the corners'
	// plane, so we only expect an approximate recovery up to the mirror
	// position.
	assert.InDelta(t, math.Abs(truePos.Z), math.Abs(best.Z), 5.0)
	assert.InDelta(t, 0, best.X, 5.0)
	assert.InDelta(t, 0, best.Y, 5.0)
}

func TestGoodScreenPairsRespectsMaxPairsAndFilter(t *testing.T) {
	t.Parallel()

	nps := points.NewNamedPointSet()
	nps.AddPoint("a", points.Black, &points.Model{Position: geom.NewPoint3D(0, 0, 0)})
	nps.AddPoint("b", points.Black, &points.Model{Position: geom.NewPoint3D(0, 0, 0)})
	nps.AddPoint("c", points.Black, &points.Model{Position: geom.NewPoint3D(0, 0, 0)})
	nps.AddPoint("d", points.Black, &points.Model{Position: geom.NewPoint3D(0, 0, 0)})

	pms := points.NewPointMappingSet()
	pms.Add(nps, "a", geom.NewPoint2D(0, 0), 1.0)
	pms.Add(nps, "b", geom.NewPoint2D(100, 0), 1.0)
	pms.Add(nps, "c", geom.NewPoint2D(0, 100), 1.0)
	pms.Add(nps, "d", geom.NewPoint2D(100, 100), 1.0)

	pairs := GoodScreenPairs(pms, 2, nil)
	assert.LessOrEqual(t, len(pairs), 2)
	for _, p := range pairs {
		assert.NotEqual(t, p[0], p[1])
	}

	filtered := GoodScreenPairs(pms, 10, func(i int, _ points.PointMapping) bool {
		return i != 0
	})
	for _, p := range filtered {
		assert.NotEqual(t, 0, p[0])
		assert.NotEqual(t, 0, p[1])
	}
}

func TestAddGoodLinesWiresChooserIntoSet(t *testing.T) {
	t.Parallel()

	c := testCamera(geom.NewPoint3D(0, 0, 0))
	corners := []geom.Point3D{
		geom.NewPoint3D(-1, -1, 10),
		geom.NewPoint3D(1, -1, 10),
		geom.NewPoint3D(1, 1, 10),
		geom.NewPoint3D(-1, 1, 10),
	}

	nps := points.NewNamedPointSet()
	pms := points.NewPointMappingSet()
	for i, corner := range corners {
		name := string(rune('a' + i))
		nps.AddPoint(name, points.Black, &points.Model{Position: corner})
		px, _ := c.WorldToPxAbsXY(corner)
		pms.Add(nps, name, px, 1.0)
	}

	set := NewSet()
	set.AddGoodLines(c, pms, 3, nil)
	assert.Equal(t, 3, set.Len())
}
