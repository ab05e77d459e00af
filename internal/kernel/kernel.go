// Package kernel implements the image-statistics shader contract the
// region-finding analyzer is built on: separable box blur, element-wise
// arithmetic, regional maxima, and non-maximum suppression. The CPU
// implementation is the normative semantic definition; a GPU dispatcher may
// be registered to run the same shaders on accelerated hardware, with CPU
// as the fallback.
package kernel

import (
	"errors"
	"math"
)

// ErrShaderUnavailable is returned by a Dispatcher that does not implement
// the requested shader (e.g. the no-GPU stub).
var ErrShaderUnavailable = errors.New("kernel: shader unavailable on this dispatcher")

// Args parameterizes a shader invocation: the image dimensions, a window
// size (for the separable box-blur shaders) and a scale factor applied to
// the shader's output.
type Args struct {
	Width, Height int
	WindowSize    int
	Scale         float64
}

// Dispatcher runs a named shader over src into out, returning (true, nil)
// if it executed the shader, (false, nil) if it does not implement that
// shader (the caller should fall back to another dispatcher), or an error
// for a genuine execution failure.
type Dispatcher interface {
	RunShader(shader string, args Args, src []float64, out []float64) (bool, error)
}

// NoGPU is a Dispatcher stub standing in for "no GPU backend registered":
// every shader reports unavailable, so Engine always falls back to its CPU
// implementation.
type NoGPU struct{}

// RunShader always reports the shader as unavailable.
func (NoGPU) RunShader(shader string, args Args, src, out []float64) (bool, error) {
	return false, nil
}

// Engine runs the shader contract, preferring an optional GPU dispatcher
// and always falling back to the CPU semantics below when the dispatcher
// declines or is absent.
type Engine struct {
	GPU Dispatcher
}

// NewEngine returns an Engine using gpu as its preferred dispatcher, or a
// NoGPU stub if gpu is nil.
func NewEngine(gpu Dispatcher) *Engine {
	if gpu == nil {
		gpu = NoGPU{}
	}
	return &Engine{GPU: gpu}
}

func (e *Engine) run(shader string, args Args, src, out []float64, cpu func()) {
	if ok, err := e.GPU.RunShader(shader, args, src, out); ok && err == nil {
		return
	}
	cpu()
}

// WindowSumX computes, for each output pixel [y,x], the scaled sum of
// src[y, x-k/2 ..= x+k/2] (k = args.WindowSize), with edge columns
// replicated rather than zero-padded.
func (e *Engine) WindowSumX(args Args, src []float64, out []float64) {
	e.run("window_sum_x", args, src, out, func() { windowSumX(args, src, out) })
}

// WindowSumY is WindowSumX's vertical counterpart.
func (e *Engine) WindowSumY(args Args, src []float64, out []float64) {
	e.run("window_sum_y", args, src, out, func() { windowSumY(args, src, out) })
}

func windowSumX(args Args, src, out []float64) {
	width, height, scale := args.Width, args.Height, args.Scale
	halfWS := args.WindowSize / 2
	skip := 2 * halfWS
	row := make([]float64, width)
	for y := 0; y < height; y++ {
		srcRow := src[y*width : y*width+width]
		var sum float64
		for x := 0; x < skip && x < width; x++ {
			sum += srcRow[x]
		}
		for x := skip; x < width; x++ {
			sum += srcRow[x]
			row[x-halfWS] = sum * scale
			sum -= srcRow[x-skip]
		}
		fillEdges(row, halfWS, width)
		copy(out[y*width:y*width+width], row)
	}
}

func windowSumY(args Args, src, out []float64) {
	width, height, scale := args.Width, args.Height, args.Scale
	halfWS := args.WindowSize / 2
	skip := 2 * halfWS
	col := make([]float64, height)
	for x := 0; x < width; x++ {
		var sum float64
		for y := 0; y < skip && y < height; y++ {
			sum += src[x+y*width]
		}
		for y := skip; y < height; y++ {
			sum += src[x+y*width]
			col[y-halfWS] = sum * scale
			sum -= src[x+(y-skip)*width]
		}
		fillEdges(col, halfWS, height)
		for y := 0; y < height; y++ {
			out[y*width+x] = col[y]
		}
	}
}

// fillEdges replicates the first and last computed interior value across
// the half-window of pixels at either edge.
func fillEdges(v []float64, half, n int) {
	if half <= 0 || half >= n {
		return
	}
	first := v[half]
	for i := 0; i < half; i++ {
		v[i] = first
	}
	last := v[n-1-half]
	for i := n - half; i < n; i++ {
		v[i] = last
	}
}

// AddScaled computes out = (out + src) * scale, per-pixel.
func (e *Engine) AddScaled(args Args, src []float64, out []float64) {
	e.run("add_scaled", args, src, out, func() {
		for i := range out {
			out[i] = (out[i] + src[i]) * args.Scale
		}
	})
}

// SubScaled computes out = (out - src) * scale, per-pixel.
func (e *Engine) SubScaled(args Args, src []float64, out []float64) {
	e.run("sub_scaled", args, src, out, func() {
		for i := range out {
			out[i] = (out[i] - src[i]) * args.Scale
		}
	})
}

// Square computes out = src^2 * scale, or out = out^2 * scale if src is
// nil (in place).
func (e *Engine) Square(args Args, src []float64, out []float64) {
	e.run("square", args, src, out, func() {
		if src == nil {
			for i := range out {
				out[i] = out[i] * out[i] * args.Scale
			}
			return
		}
		for i := range out {
			out[i] = src[i] * src[i] * args.Scale
		}
	})
}

// Sqrt computes out = sqrt(src) * scale, or out = sqrt(out) * scale if src
// is nil (in place).
func (e *Engine) Sqrt(args Args, src []float64, out []float64) {
	e.run("sqrt", args, src, out, func() {
		if src == nil {
			for i := range out {
				out[i] = math.Sqrt(out[i]) * args.Scale
			}
			return
		}
		for i := range out {
			out[i] = math.Sqrt(src[i]) * args.Scale
		}
	})
}

// RegionMax is the per-region result of MaxOfRegion: the location and
// value of the region's brightest pixel, and how many of its pixels
// exceeded minValue.
type RegionMax struct {
	X, Y          int
	Value         float64
	CountAboveMin int
}

// MaxOfRegion divides the width x height image into a grid of
// regionSize x regionSize regions (edge regions truncated to fit the
// image) and, for each, finds the brightest pixel's location and value
// along with the count of pixels exceeding minValue. Regions are returned
// in row-major region order.
func MaxOfRegion(data []float64, width, height, regionSize int, minValue float64) []RegionMax {
	if regionSize < 1 {
		regionSize = 1
	}
	regionsX := (width + regionSize - 1) / regionSize
	regionsY := (height + regionSize - 1) / regionSize
	out := make([]RegionMax, regionsX*regionsY)

	for ry := 0; ry < regionsY; ry++ {
		for rx := 0; rx < regionsX; rx++ {
			x0, y0 := rx*regionSize, ry*regionSize
			x1 := min(x0+regionSize, width)
			y1 := min(y0+regionSize, height)

			best := RegionMax{X: x0, Y: y0, Value: math.Inf(-1)}
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					v := data[y*width+x]
					if v > minValue {
						best.CountAboveMin++
					}
					if v > best.Value {
						best.Value = v
						best.X, best.Y = x, y
					}
				}
			}
			out[ry*regionsX+rx] = best
		}
	}
	return out
}

// Peak is one accepted local maximum.
type Peak struct {
	X, Y  int
	Value float64
}

// ReduceValue overwrites every pixel within radius of each selected point
// with small, performing non-maximum suppression between search rounds.
func ReduceValue(data []float64, width, height int, points []Peak, radius, small float64) {
	r := int(math.Ceil(radius))
	r2 := radius * radius
	for _, p := range points {
		for y := max(0, p.Y-r); y <= min(height-1, p.Y+r); y++ {
			for x := max(0, p.X-r); x <= min(width-1, p.X+r); x++ {
				dx, dy := float64(x-p.X), float64(y-p.Y)
				if dx*dx+dy*dy <= r2 {
					data[y*width+x] = small
				}
			}
		}
	}
}

// FindBestNAboveValue iteratively finds up to n local maxima, each
// separated by at least minDist pixels and each exceeding threshold:
// the image is divided into max(minDist,32)-sized
// regions; each round's regional maxima are sorted descending; a region's
// max is accepted only if none of its eight neighboring regions already
// holds a higher max this round; accepted points are masked out of a
// working copy and the search repeats until the best remaining candidate
// no longer exceeds threshold, no longer exceeds the weakest peak already
// accepted, a round accepts nothing, or n points have been found.
func FindBestNAboveValue(data []float64, width, height, n int, threshold, minDist float64) []Peak {
	regionSize := int(math.Max(minDist, 32))
	working := append([]float64(nil), data...)
	weakestAccepted := math.Inf(1)

	var peaks []Peak
	for len(peaks) < n {
		regions := MaxOfRegion(working, width, height, regionSize, threshold)
		regionsX := (width + regionSize - 1) / regionSize
		regionsY := (height + regionSize - 1) / regionSize

		order := make([]int, len(regions))
		for i := range order {
			order[i] = i
		}
		for i := 1; i < len(order); i++ {
			for j := i; j > 0 && regions[order[j]].Value > regions[order[j-1]].Value; j-- {
				order[j], order[j-1] = order[j-1], order[j]
			}
		}

		// A fresh round that cannot better the weakest already-accepted peak
		// is only re-finding suppressed lobes of earlier peaks.
		if len(order) == 0 || regions[order[0]].Value <= threshold {
			break
		}
		if len(peaks) > 0 && regions[order[0]].Value <= weakestAccepted {
			break
		}

		acceptedThisRound := 0
		for _, idx := range order {
			if len(peaks) >= n {
				break
			}
			rm := regions[idx]
			if rm.Value <= threshold {
				break
			}
			rx, ry := idx%regionsX, idx/regionsX
			if hasHigherNeighbor(regions, regionsX, regionsY, rx, ry, rm.Value) {
				continue
			}
			peaks = append(peaks, Peak{X: rm.X, Y: rm.Y, Value: rm.Value})
			acceptedThisRound++
			if rm.Value < weakestAccepted {
				weakestAccepted = rm.Value
			}
			ReduceValue(working, width, height, []Peak{{X: rm.X, Y: rm.Y}}, minDist, threshold)
		}
		if acceptedThisRound == 0 {
			break
		}
	}
	return peaks
}

func hasHigherNeighbor(regions []RegionMax, regionsX, regionsY, rx, ry int, value float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := rx+dx, ry+dy
			if nx < 0 || nx >= regionsX || ny < 0 || ny >= regionsY {
				continue
			}
			if regions[ny*regionsX+nx].Value > value {
				return true
			}
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
