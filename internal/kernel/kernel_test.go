package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowSumXUniformImageIsUnchanged(t *testing.T) {
	t.Parallel()

	const w, h = 10, 1
	src := make([]float64, w*h)
	for i := range src {
		src[i] = 4.0
	}
	out := make([]float64, w*h)

	e := NewEngine(nil)
	e.WindowSumX(Args{Width: w, Height: h, WindowSize: 3, Scale: 1.0 / 3}, src, out)

	for i, v := range out {
		assert.InDelta(t, 4.0, v, 1e-9, "index %d", i)
	}
}

func TestWindowSumYMatchesTransposedWindowSumX(t *testing.T) {
	t.Parallel()

	const w, h = 5, 5
	src := make([]float64, w*h)
	for i := range src {
		src[i] = float64(i % 7)
	}

	e := NewEngine(nil)
	outX := make([]float64, w*h)
	e.WindowSumX(Args{Width: w, Height: h, WindowSize: 3, Scale: 1}, src, outX)

	transposed := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			transposed[x*h+y] = src[y*w+x]
		}
	}
	outYviaX := make([]float64, w*h)
	e.WindowSumX(Args{Width: h, Height: w, WindowSize: 3, Scale: 1}, transposed, outYviaX)

	outY := make([]float64, w*h)
	e.WindowSumY(Args{Width: w, Height: h, WindowSize: 3, Scale: 1}, src, outY)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			assert.InDelta(t, outYviaX[x*h+y], outY[y*w+x], 1e-9)
		}
	}
}

func TestAddSubScaledRoundTrip(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil)
	src := []float64{1, 2, 3, 4}
	out := []float64{10, 20, 30, 40}
	e.AddScaled(Args{Scale: 1}, src, out)
	assert.Equal(t, []float64{11, 22, 33, 44}, out)

	e.SubScaled(Args{Scale: 1}, src, out)
	assert.Equal(t, []float64{10, 20, 30, 40}, out)
}

func TestSquareSqrtRoundTrip(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil)
	out := []float64{2, 3, 4}
	e.Square(Args{Scale: 1}, nil, out)
	assert.Equal(t, []float64{4, 9, 16}, out)

	e.Sqrt(Args{Scale: 1}, nil, out)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, out, 1e-9)
}

func TestMaxOfRegionFindsBrightestPixel(t *testing.T) {
	t.Parallel()

	const w, h = 8, 8
	data := make([]float64, w*h)
	data[2*w+3] = 100 // region (0,0) for a regionSize of 4
	data[5*w+6] = 50  // region (1,1)

	regions := MaxOfRegion(data, w, h, 4, 0)
	require.Len(t, regions, 4)

	assert.Equal(t, 3, regions[0].X)
	assert.Equal(t, 2, regions[0].Y)
	assert.Equal(t, 100.0, regions[0].Value)

	assert.Equal(t, 6, regions[3].X)
	assert.Equal(t, 5, regions[3].Y)
	assert.Equal(t, 50.0, regions[3].Value)
}

func TestReduceValueMasksWithinRadius(t *testing.T) {
	t.Parallel()

	const w, h = 5, 5
	data := make([]float64, w*h)
	for i := range data {
		data[i] = 10
	}
	ReduceValue(data, w, h, []Peak{{X: 2, Y: 2}}, 1, -1)

	assert.Equal(t, -1.0, data[2*w+2])
	assert.Equal(t, -1.0, data[1*w+2])
	assert.Equal(t, 10.0, data[0*w+0])
}

func TestFindBestNAboveValueSeparatesPeaks(t *testing.T) {
	t.Parallel()

	const w, h = 128, 128
	data := make([]float64, w*h)
	data[20*w+20] = 200
	data[100*w+100] = 150
	data[21*w+21] = 190 // within min_dist of the first peak, should be suppressed

	peaks := FindBestNAboveValue(data, w, h, 5, 10, 8)
	require.Len(t, peaks, 2)
	assert.Equal(t, 200.0, peaks[0].Value)
	assert.Equal(t, 150.0, peaks[1].Value)
}

func TestNoGPUAlwaysFallsBackToCPU(t *testing.T) {
	t.Parallel()

	ok, err := (NoGPU{}).RunShader("square", Args{}, nil, nil)
	assert.False(t, ok)
	assert.NoError(t, err)
}
