// Package optimize implements the numeric optimization primitives that
// drive iterative pose refinement and lens calibration: a forward-difference
// gradient probe and a bisecting step-scaler over a scalar error function of
// a D-dimensional domain point.
package optimize

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// ErrorFunc evaluates a scalar error for a point in a D-dimensional domain,
// e.g. a candidate camera position or a polynomial coefficient vector.
type ErrorFunc func(p []float64) float64

// DeltaP estimates the gradient of f at p by forward-difference probing
// each axis, then normalizes and rescales it so the returned vector's
// length is exactly delta regardless of the local gradient magnitude.
// DeltaP points in the increasing-f direction; callers subtract it from p
// to move toward lower error.
func DeltaP(p []float64, f ErrorFunc, delta float64) []float64 {
	d := len(p)
	grad := make([]float64, d)
	fd.Gradient(grad, func(x []float64) float64 { return f(x) }, p, &fd.Settings{
		Formula: fd.Forward,
		Step:    delta,
	})

	n := floats.Norm(grad, 2)
	if n == 0 {
		return grad
	}
	floats.Scale(delta/n, grad)
	return grad
}

// BetterPt evaluates f(p-dp) and f(p+dp); if either improves on f(p) it
// moves the working center there, then scales dp by scale and repeats for
// steps iterations. Used as pose refinement's inner bisecting search. It
// returns whether any move was made, the best error reached, and the
// resulting point (a copy; p and dp are never mutated).
func BetterPt(p, dp []float64, f ErrorFunc, steps int, scale float64) (moved bool, bestErr float64, center []float64) {
	d := len(p)
	center = append([]float64(nil), p...)
	dp = append([]float64(nil), dp...)

	bestErr = f(center)
	left := make([]float64, d)
	right := make([]float64, d)
	for s := 0; s < steps; s++ {
		for i := 0; i < d; i++ {
			left[i] = center[i] - dp[i]
			right[i] = center[i] + dp[i]
		}
		errLeft := f(left)
		errRight := f(right)
		if errLeft < bestErr && errLeft < errRight {
			bestErr = errLeft
			copy(center, left)
			moved = true
		} else if errRight < errLeft && errRight < bestErr {
			bestErr = errRight
			copy(center, right)
			moved = true
		}
		for i := 0; i < d; i++ {
			dp[i] *= scale
		}
	}
	return moved, bestErr, center
}
