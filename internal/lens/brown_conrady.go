package lens

import "fmt"

// BrownConrady is an OpenCV-style radial/tangential distortion model,
// supplementing the tan(yaw) polynomial Lens above for cameras whose
// calibration was performed with OpenCV-shaped intrinsics (K1-K3 radial,
// P1-P2 tangential) rather than a fit over yaw samples. It operates on
// normalized (x, y) image-plane coordinates rather than a scalar tan(yaw),
// so it is not itself a drop-in Lens; camera.Instance uses the polynomial
// Lens, and BrownConrady is exposed for import/conversion tooling.
type BrownConrady struct {
	RadialK1, RadialK2, RadialK3 float64
	TangentialP1, TangentialP2   float64
}

// NewBrownConrady builds a BrownConrady from up to 5 OpenCV-ordered
// parameters [k1, k2, p1, p2, k3]; missing trailing parameters default to
// zero.
func NewBrownConrady(params []float64) (*BrownConrady, error) {
	if len(params) > 5 {
		return nil, fmt.Errorf("lens: too many BrownConrady parameters: got %d, want <= 5", len(params))
	}
	get := func(i int) float64 {
		if i < len(params) {
			return params[i]
		}
		return 0
	}
	return &BrownConrady{
		RadialK1:     get(0),
		RadialK2:     get(1),
		TangentialP1: get(2),
		TangentialP2: get(3),
		RadialK3:     get(4),
	}, nil
}

// Parameters returns the coefficients in OpenCV order [k1, k2, p1, p2, k3].
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{0, 0, 0, 0, 0}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2, bc.RadialK3}
}

// CheckValid reports whether bc is usable; a nil receiver is invalid.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return fmt.Errorf("lens: BrownConrady shaped distortion_parameters not provided: invalid distortion_parameters")
	}
	return nil
}

// Transform applies forward radial/tangential distortion to a normalized
// undistorted point (x, y).
func (bc *BrownConrady) Transform(x, y float64) (xd, yd float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	r4 := r2 * r2
	r6 := r4 * r2
	radial := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r6
	dx := 2.0*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2.0*x*x)
	dy := bc.TangentialP1*(r2+2.0*y*y) + 2.0*bc.TangentialP2*x*y
	return x*radial + dx, y*radial + dy
}

// Undistort inverts Transform by fixed-point iteration, starting from the
// small-distortion assumption that the undistorted point equals the
// distorted one.
func (bc *BrownConrady) Undistort(xd, yd float64) (x, y float64) {
	if bc == nil {
		return xd, yd
	}
	x, y = xd, yd
	const iters = 8
	for i := 0; i < iters; i++ {
		r2 := x*x + y*y
		r4 := r2 * r2
		r6 := r4 * r2
		radial := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r6
		if radial == 0 {
			radial = 1
		}
		dx := 2.0*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2.0*x*x)
		dy := bc.TangentialP1*(r2+2.0*y*y) + 2.0*bc.TangentialP2*x*y
		x = (xd - dx) / radial
		y = (yd - dy) / radial
	}
	return x, y
}
