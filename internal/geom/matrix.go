package geom

import "gonum.org/v1/gonum/mat"

// Matrix3 is a 3x3 real matrix, stored row-major. It is the geometric type
// used by the ray and lens packages to express and solve the small linear
// systems that appear throughout the core (weighted ray intersection,
// Vandermonde normal equations, plane fitting).
type Matrix3 struct {
	M [3][3]float64
}

// Dense returns m as a gonum *mat.Dense, suitable for passing into gonum's
// solvers and decompositions.
func (m Matrix3) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m.M[0][0], m.M[0][1], m.M[0][2],
		m.M[1][0], m.M[1][1], m.M[1][2],
		m.M[2][0], m.M[2][1], m.M[2][2],
	})
}

// Solve solves M*x = v for x. It returns ok=false if M is singular (e.g.
// all rays being intersected are parallel) rather than surfacing a gonum
// error to every caller.
func (m Matrix3) Solve(v [3]float64) (x [3]float64, ok bool) {
	a := m.Dense()
	b := mat.NewDense(3, 1, v[:])
	var dst mat.Dense
	if err := dst.Solve(a, b); err != nil {
		return x, false
	}
	x[0], x[1], x[2] = dst.At(0, 0), dst.At(1, 0), dst.At(2, 0)
	return x, true
}
