package project

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/camerabody"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/lens"
	"github.com/meridian-optics/photocal/internal/points"
)

func testCamera() *camera.Instance {
	body := camerabody.Body{
		Name: "test-body", PxWidth: 1000, PxHeight: 1000,
		PxCentre: geom.NewPoint2D(500, 500),
		MMSensorWidth: 20, MMSensorHeight: 20,
	}
	body.Derive()
	cl := lens.CameraLens{
		Name: "test-lens", FocalLengthMM: 24,
		Lens: lens.Lens{
			Forward: lens.Polynomial{Coeffs: []float64{0, 1}},
			Inverse: lens.Polynomial{Coeffs: []float64{0, 1}},
		},
	}
	return camera.New(body, cl, 1e6*24, geom.Point3D{}, geom.NewQuat(1, 0, 0, 0))
}

func TestHandleBorrowIsSharedReadOnly(t *testing.T) {
	t.Parallel()

	h := NewHandle(42)
	v1, release1 := h.Borrow()
	v2, release2 := h.Borrow()
	assert.Equal(t, 42, v1)
	assert.Equal(t, 42, v2)
	release1()
	release2()
}

func TestHandleBorrowMutMutatesAndReleases(t *testing.T) {
	t.Parallel()

	h := NewHandle(1)
	p, release := h.BorrowMut()
	*p = 2
	release()

	v, release2 := h.Borrow()
	assert.Equal(t, 2, v)
	release2()
}

func TestHandleSet(t *testing.T) {
	t.Parallel()

	h := NewHandle("a")
	h.Set("b")
	v, release := h.Borrow()
	defer release()
	assert.Equal(t, "b", v)
}

func TestHandleCollidingExclusiveBorrowPanics(t *testing.T) {
	t.Parallel()

	h := NewHandle(0)
	_, release := h.BorrowMut()
	defer release()

	require.Panics(t, func() {
		h.BorrowMut()
	})
}

func TestHandleCollidingBorrowAgainstOutstandingReadersPanics(t *testing.T) {
	t.Parallel()

	h := NewHandle(0)
	_, releaseRead := h.Borrow()
	defer releaseRead()

	require.Panics(t, func() {
		h.BorrowMut()
	})
}

func TestHandleManyConcurrentReadersDoNotPanic(t *testing.T) {
	t.Parallel()

	h := NewHandle(7)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, release := h.Borrow()
			assert.Equal(t, 7, v)
			release()
		}()
	}
	wg.Wait()
}

func TestProjectAddImageWrapsHandles(t *testing.T) {
	t.Parallel()

	cdb := camera.NewDatabase()
	nps := points.NewNamedPointSet()
	p := New(cdb, nps)

	c := testCamera()
	pms := points.NewPointMappingSet()
	cip := p.AddImage("img0.jpg", c, pms)

	require.Len(t, p.CIPs, 1)
	assert.Equal(t, "img0.jpg", cip.Image)

	got, release := cip.Camera.Borrow()
	defer release()
	assert.Same(t, c, got)
}

func TestDocRoundTrip(t *testing.T) {
	t.Parallel()

	d := &Doc{
		CDB: "cameras.json",
		NPS: "points.json",
		CIPs: []cipDoc{
			{CameraFile: "c0.json", PMSFile: "m0.json", Image: "img0.jpg"},
		},
	}
	data, err := d.Save()
	require.NoError(t, err)

	got, err := LoadDoc(data)
	require.NoError(t, err)
	refs := got.CIPRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, CIPRef{CameraFile: "c0.json", PMSFile: "m0.json", Image: "img0.jpg"}, refs[0])
	assert.Equal(t, "cameras.json", got.CDB)
	assert.Equal(t, "points.json", got.NPS)
}

func TestLoadDocRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := LoadDoc([]byte("not json"))
	require.Error(t, err)
}
