// Package calibrate implements the lens calibration procedure: deriving a
// camera's lens distortion polynomial from a photograph of a known planar
// grid (or any calibration mapping of known world points to observed
// pixels).
package calibrate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/lens"
	"github.com/meridian-optics/photocal/internal/points"
	"github.com/meridian-optics/photocal/internal/pose"
)

// Pair is one (world-xyz, sensor-pixel-xy) correspondence: the primary
// input to lens fitting.
type Pair struct {
	World  geom.Point3D
	Sensor geom.Point2D
}

// Mapping is an ordered list of calibration pairs for one image of a known
// planar grid (or any set of points with known world and observed sensor
// coordinates).
type Mapping []Pair

type pairJSON [5]float64

// LoadMapping parses the calibration-mapping JSON document: a JSON array
// of [wx, wy, wz, px, py].
func LoadMapping(data []byte) (Mapping, error) {
	var raw []pairJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("calibrate: decode mapping: %w", err)
	}
	out := make(Mapping, len(raw))
	for i, p := range raw {
		out[i] = Pair{
			World:  geom.NewPoint3D(p[0], p[1], p[2]),
			Sensor: geom.NewPoint2D(p[3], p[4]),
		}
	}
	return out, nil
}

// Save serializes m to the calibration-mapping JSON document format.
func (m Mapping) Save() ([]byte, error) {
	raw := make([]pairJSON, len(m))
	for i, p := range m {
		raw[i] = pairJSON{p.World.X, p.World.Y, p.World.Z, p.Sensor.X, p.Sensor.Y}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("calibrate: encode mapping: %w", err)
	}
	return data, nil
}

// Sample is one (world tan-yaw, sensor tan-yaw) correspondence, the
// consumer-side contract this package exposes to an external sample
// collector (e.g. a star-catalog solver feeding in samples derived from
// matched star positions rather than a planar grid). It shares the domain
// of lens.Sample: tan of the angle off the optical axis, which the lens
// polynomials operate over directly.
type Sample struct {
	WorldYaw, SensorYaw float64
}

func (s Sample) toLens() lens.Sample { return lens.Sample{X: s.WorldYaw, Y: s.SensorYaw} }

// DeriveSamples computes one Sample per calibration pair, from a camera
// instance whose pose (position, orientation) is already known or has been
// estimated: world_yaw is the tan(angle) of the world point's direction off
// the optical axis as seen by c's pose; sensor_yaw is the tan(angle) a pure
// pinhole lens of c's focal length and sensor scale would imply for the
// observed pixel, i.e. the pixel mapped back through the sensor geometry
// alone, bypassing c's (possibly not-yet-fitted) lens polynomial. Pairs
// whose world point lies in the camera's z=0 plane cannot be projected and
// are skipped.
func DeriveSamples(c *camera.Instance, mapping Mapping) []Sample {
	// On-axis pairs are skipped: a zero yaw carries no lens information
	// (the axis maps to itself by construction) and would poison the
	// median-window ratio filter with a 0/0.
	const minYaw = 1e-6
	var out []Sample
	for _, pr := range mapping {
		worldTxty, ok := c.WorldToCameraTxty(pr.World)
		if !ok {
			continue
		}
		sensorTxty := c.PxAbsXYToSensorTxty(pr.Sensor)
		worldYaw := worldTxty.RollYaw().TanYaw
		sensorYaw := sensorTxty.RollYaw().TanYaw
		if worldYaw < minYaw || sensorYaw < minYaw {
			continue
		}
		out = append(out, Sample{WorldYaw: worldYaw, SensorYaw: sensorYaw})
	}
	return out
}

// MedianWindowFilter suppresses outliers in a sequence of raw samples by
// sliding a window of world/sensor ratios (the eight held entries plus the
// incoming one), dropping the min and max, and averaging the remaining
// seven; the filtered sample pairs the window's middle raw sensor_yaw with
// that trimmed-mean ratio scaled by it.
// Samples are processed in ascending sensor-yaw order so that window
// neighbors have comparable ratios. The window is seeded with eight
// (sensor=0, ratio=1) placeholders, but output starts only once they have
// all slid out, so every filtered sample is averaged over nine genuine
// samples centred on it. The first and last four samples yield no output
// of their own: n samples give n-8 filtered samples.
func MedianWindowFilter(samples []Sample) []Sample {
	const windowLen = 8
	mid := (windowLen + 1) / 2

	sorted := append([]Sample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SensorYaw < sorted[j].SensorYaw })

	type entry struct {
		sensor, ratio float64
	}
	window := make([]entry, windowLen)
	for i := range window {
		window[i] = entry{sensor: 0, ratio: 1}
	}

	ratios := make([]float64, 0, windowLen+1)
	var out []Sample
	for i, s := range sorted {
		ratio := s.WorldYaw / s.SensorYaw
		window = append(window, entry{sensor: s.SensorYaw, ratio: ratio})

		ratios = ratios[:0]
		for _, e := range window {
			ratios = append(ratios, e.ratio)
		}
		n := float64(len(ratios))
		mean := (floats.Sum(ratios) - floats.Min(ratios) - floats.Max(ratios)) / (n - 2)

		if i >= mid*2 {
			sensorMid := window[mid].sensor
			out = append(out, Sample{WorldYaw: mean * sensorMid, SensorYaw: sensorMid})
		}
		window = window[1:]
	}
	return out
}

// Config tunes the outer calibrate/pose-recovery iteration of Procedure.
type Config struct {
	// Degree is the polynomial degree fitted for both WorldToSensor and
	// SensorToWorld (default 7).
	Degree int
	// MaxOuterIterations bounds the pose-fit/lens-fit alternation.
	MaxOuterIterations int
	// CoefficientTolerance is the convergence threshold: the outer loop
	// stops once every fitted coefficient changes by less than this
	// between iterations.
	CoefficientTolerance float64
	// PoseMaxIterations and PoseTolerance are passed through to
	// pose.Recover during each outer iteration.
	PoseMaxIterations int
	PoseTolerance     float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Degree:               7,
		MaxOuterIterations:   20,
		CoefficientTolerance: 1e-9,
		PoseMaxIterations:    50,
		PoseTolerance:        1e-12,
	}
}

// Validate checks that c's fields are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Degree < 1 {
		return fmt.Errorf("calibrate: Degree must be >= 1, got %d", c.Degree)
	}
	if c.MaxOuterIterations < 1 {
		return fmt.Errorf("calibrate: MaxOuterIterations must be >= 1, got %d", c.MaxOuterIterations)
	}
	if c.CoefficientTolerance < 0 {
		return fmt.Errorf("calibrate: CoefficientTolerance must be non-negative, got %f", c.CoefficientTolerance)
	}
	if c.PoseMaxIterations < 1 {
		return fmt.Errorf("calibrate: PoseMaxIterations must be >= 1, got %d", c.PoseMaxIterations)
	}
	return nil
}

// Result reports the outcome of Procedure.
type Result struct {
	Fit             lens.FitResult
	OuterIterations int
	Converged       bool
	WorstSampleIdx  int
	WorstSampleErr  float64
}

// Procedure runs the five-step lens calibration against a
// camera instance whose body, focus distance and initial (possibly
// identity) lens are already set and whose pose is either known or will be
// estimated fresh each outer iteration:
//
//  1. derive (or use the existing) approximate pose from pms;
//  2. derive (world_yaw, sensor_yaw) samples for every pair;
//  3. median-window-filter the samples;
//  4. fit WorldToSensor/SensorToWorld polynomials and report error stats;
//  5. install the fitted lens on c and repeat until the fitted
//     coefficients stop moving by more than cfg.CoefficientTolerance, or
//     cfg.MaxOuterIterations elapses.
//
// pms supplies the pose-recovery inputs for step 1; nil (or an empty set)
// may be passed when c's pose is already trustworthy, in which case Procedure
// skips pose re-estimation and calibrates purely from the fixed pose.
func Procedure(c *camera.Instance, mapping Mapping, pms *points.PointMappingSet, cfg *Config) (Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if len(mapping) == 0 {
		return Result{}, fmt.Errorf("calibrate: Procedure requires at least one calibration pair")
	}

	var prevCoeffs []float64
	var fitResult lens.FitResult
	iterations := 0
	converged := false

	for ; iterations < cfg.MaxOuterIterations; iterations++ {
		if pms != nil && pms.Len() > 0 {
			if _, err := recoverPose(c, pms, cfg); err != nil {
				return Result{}, err
			}
		}

		samples := DeriveSamples(c, mapping)
		if len(samples) < 2*(cfg.Degree+1) {
			return Result{}, fmt.Errorf("calibrate: %d samples insufficient for degree %d (need >= %d)", len(samples), cfg.Degree, 2*(cfg.Degree+1))
		}
		filtered := MedianWindowFilter(samples)
		if len(filtered) < 2*(cfg.Degree+1) {
			filtered = samples
		}

		lensSamples := make([]lens.Sample, len(filtered))
		for i, s := range filtered {
			lensSamples[i] = s.toLens()
		}

		var err error
		fitResult, err = lens.Fit(lensSamples, cfg.Degree)
		if err != nil {
			return Result{}, err
		}
		c.Lens.Lens = fitResult.Lens

		coeffs := append(append([]float64(nil), fitResult.Lens.Forward.Coeffs...), fitResult.Lens.Inverse.Coeffs...)
		if prevCoeffs != nil && coeffsConverged(prevCoeffs, coeffs, cfg.CoefficientTolerance) {
			converged = true
			iterations++
			break
		}
		prevCoeffs = coeffs
	}

	worstIdx, worstErr := worstFittingSample(fitResult.Lens, mapping, c)
	return Result{
		Fit:             fitResult,
		OuterIterations: iterations,
		Converged:       converged,
		WorstSampleIdx:  worstIdx,
		WorstSampleErr:  worstErr,
	}, nil
}

// recoverPose re-estimates c's pose against pms using the current lens.
func recoverPose(c *camera.Instance, pms *points.PointMappingSet, cfg *Config) (pose.Result, error) {
	return pose.Recover(c, pms, cfg.PoseMaxIterations, cfg.PoseTolerance)
}

func coeffsConverged(prev, next []float64, tol float64) bool {
	if len(prev) != len(next) {
		return false
	}
	for i := range prev {
		if math.Abs(prev[i]-next[i]) > tol {
			return false
		}
	}
	return true
}

// worstFittingSample reports the index and squared sensor-yaw residual of
// the calibration pair with the largest forward-map error under the fitted
// lens (WorldToSensor of its world tan-yaw minus its observed sensor
// tan-yaw).
func worstFittingSample(l lens.Lens, mapping Mapping, c *camera.Instance) (int, float64) {
	worstIdx := 0
	worstErr := -1.0
	for i, pr := range mapping {
		worldTxty, ok := c.WorldToCameraTxty(pr.World)
		if !ok {
			continue
		}
		sensorTxty := c.PxAbsXYToSensorTxty(pr.Sensor)
		predicted := l.WorldToSensor(worldTxty.RollYaw().TanYaw)
		d := predicted - sensorTxty.RollYaw().TanYaw
		e := d * d
		if e > worstErr {
			worstErr = e
			worstIdx = i
		}
	}
	if worstErr < 0 {
		worstErr = 0
	}
	return worstIdx, worstErr
}
