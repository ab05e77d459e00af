// Package lens implements the lens distortion models that map
// tan(world_yaw) <-> tan(sensor_yaw).
package lens

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrDegreeTooHigh is returned by Fit when the sample count cannot support
// the requested polynomial degree (N >= 2*P coefficients required).
var ErrDegreeTooHigh = errors.New("lens: sample count too small for requested degree")

// Polynomial is a single-variable polynomial with a zero constant term,
// evaluated over tan(yaw). Coeffs[0] is always 0 and is kept only so index
// j lines up with the power x^j.
type Polynomial struct {
	Coeffs []float64
}

// Eval evaluates the polynomial at x using Horner's method.
func (p Polynomial) Eval(x float64) float64 {
	var y float64
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		y = y*x + p.Coeffs[i]
	}
	return y
}

// Sample is one (worldTanYaw, sensorTanYaw) correspondence used to fit a
// Lens.
type Sample struct {
	X, Y float64
}

// Lens maps tan(world_yaw) to tan(sensor_yaw) and back via two
// independently-fit polynomials. Roll is never touched by a
// Lens; callers apply it only to the yaw component of a RollYaw.
type Lens struct {
	Forward Polynomial // world tan(yaw) -> sensor tan(yaw)
	Inverse Polynomial // sensor tan(yaw) -> world tan(yaw)
}

// WorldToSensor maps a world-space tan(yaw) to sensor-space tan(yaw).
func (l Lens) WorldToSensor(worldTanYaw float64) float64 {
	return l.Forward.Eval(worldTanYaw)
}

// SensorToWorld maps a sensor-space tan(yaw) back to world-space tan(yaw).
func (l Lens) SensorToWorld(sensorTanYaw float64) float64 {
	return l.Inverse.Eval(sensorTanYaw)
}

// CameraLens is the named, physical lens description referenced by a
// camera instance: a name, its focal length in mm, and the polynomial
// mapping above. Immutable once constructed.
type CameraLens struct {
	Name          string
	FocalLengthMM float64
	Lens          Lens
}

// WorldToSensor maps a world-space tan(yaw) to sensor-space tan(yaw).
func (l CameraLens) WorldToSensor(worldTanYaw float64) float64 {
	return l.Lens.WorldToSensor(worldTanYaw)
}

// SensorToWorld maps a sensor-space tan(yaw) back to world-space tan(yaw).
func (l CameraLens) SensorToWorld(sensorTanYaw float64) float64 {
	return l.Lens.SensorToWorld(sensorTanYaw)
}

// FitResult reports the outcome of fitting a polynomial to a sample set,
// including round-trip error statistics gathered by evaluating Forward then
// Inverse across the sample grid (|SensorToWorld(WorldToSensor(x)) - x|).
type FitResult struct {
	Lens         Lens
	MaxAbsError  float64
	MeanAbsError float64
}

// Fit fits forward and inverse polynomials of the given degree to samples,
// each independently least-squares via a Vandermonde matrix, and reports
// round-trip error statistics over the same samples.
//
// degree is the polynomial degree (coefficient count P = degree+1, with
// a[0] forced to 0 post-fit). Requires len(samples) >= 2*(degree+1).
func Fit(samples []Sample, degree int) (FitResult, error) {
	p := degree + 1
	if len(samples) < 2*p {
		return FitResult{}, fmt.Errorf("%w: have %d samples, need >= %d for degree %d", ErrDegreeTooHigh, len(samples), 2*p, degree)
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.X
		ys[i] = s.Y
	}

	forward, err := fitPolynomial(xs, ys, p)
	if err != nil {
		return FitResult{}, err
	}
	inverse, err := fitPolynomial(ys, xs, p)
	if err != nil {
		return FitResult{}, err
	}

	l := Lens{Forward: forward, Inverse: inverse}

	residuals := make([]float64, len(samples))
	for i, s := range samples {
		roundTripped := l.SensorToWorld(l.WorldToSensor(s.X))
		residuals[i] = absf(roundTripped - s.X)
	}
	maxErr := residuals[0]
	for _, r := range residuals {
		if r > maxErr {
			maxErr = r
		}
	}

	return FitResult{
		Lens:         l,
		MaxAbsError:  maxErr,
		MeanAbsError: stat.Mean(residuals, nil),
	}, nil
}

// fitPolynomial fits y = sum_j a[j]*x^j (j=0..p-1) by forming the N×P
// Vandermonde matrix X, solving the normal equations (X^T X) a = X^T y, and
// zeroing the constant term to enforce the "optical axis maps to itself"
// invariant.
func fitPolynomial(xs, ys []float64, p int) (Polynomial, error) {
	n := len(xs)
	vandermonde := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		xp := 1.0
		for j := 0; j < p; j++ {
			vandermonde.Set(i, j, xp)
			xp *= xs[i]
		}
	}

	var xtx mat.Dense
	xtx.Mul(vandermonde.T(), vandermonde)

	yVec := mat.NewDense(n, 1, ys)
	var xty mat.Dense
	xty.Mul(vandermonde.T(), yVec)

	var a mat.Dense
	if err := a.Solve(&xtx, &xty); err != nil {
		return Polynomial{}, fmt.Errorf("lens: polynomial fit failed: %w", err)
	}

	coeffs := make([]float64, p)
	for j := 0; j < p; j++ {
		coeffs[j] = a.At(j, 0)
	}
	coeffs[0] = 0
	return Polynomial{Coeffs: coeffs}, nil
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
