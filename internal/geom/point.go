// Package geom provides the fixed-size vector, quaternion, angular-ray and
// plane types shared by the rest of the photogrammetry pipeline. All angles
// are radians unless documented otherwise.
package geom

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Point3D is a 3-element real vector, also used to represent a 3D point.
// It is built on gonum's r3.Vec so it shares memory layout with the rest of
// the gonum spatial ecosystem, but carries the arithmetic methods this
// package's callers expect (Add, Sub, Dot, Cross, ...) as value receivers.
type Point3D struct {
	r3.Vec
}

// NewPoint3D constructs a Point3D from its three components.
func NewPoint3D(x, y, z float64) Point3D {
	return Point3D{r3.Vec{X: x, Y: y, Z: z}}
}

// Add returns p+q.
func (p Point3D) Add(q Point3D) Point3D {
	return NewPoint3D(p.X+q.X, p.Y+q.Y, p.Z+q.Z)
}

// Sub returns p-q.
func (p Point3D) Sub(q Point3D) Point3D {
	return NewPoint3D(p.X-q.X, p.Y-q.Y, p.Z-q.Z)
}

// Scale returns p scaled by the scalar f.
func (p Point3D) Scale(f float64) Point3D {
	return NewPoint3D(p.X*f, p.Y*f, p.Z*f)
}

// Div returns p divided component-wise by the scalar f.
func (p Point3D) Div(f float64) Point3D {
	return NewPoint3D(p.X/f, p.Y/f, p.Z/f)
}

// Dot returns the scalar (inner) product of p and q.
func (p Point3D) Dot(q Point3D) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Cross returns the vector (cross) product p x q.
func (p Point3D) Cross(q Point3D) Point3D {
	return NewPoint3D(
		p.Y*q.Z-p.Z*q.Y,
		p.Z*q.X-p.X*q.Z,
		p.X*q.Y-p.Y*q.X,
	)
}

// LengthSq returns the squared Euclidean length of p.
func (p Point3D) LengthSq() float64 {
	return p.Dot(p)
}

// Length returns the Euclidean length of p.
func (p Point3D) Length() float64 {
	return math.Sqrt(p.LengthSq())
}

// Normalize returns p scaled to unit length. The zero vector is returned
// unchanged (callers on the hot path are expected to guard against a
// zero-length input themselves, matching the lens/ray conversion routines
// which clamp near-zero denominators explicitly).
func (p Point3D) Normalize() Point3D {
	l := p.Length()
	if l == 0 {
		return p
	}
	return p.Div(l)
}

// Eq reports whether p and q are exactly equal, component-wise.
func (p Point3D) Eq(q Point3D) bool {
	return p.X == q.X && p.Y == q.Y && p.Z == q.Z
}

// Aeq (almost-equal) reports whether p and q are equal to within tol in
// every component. Used in tests and convergence checks where an exact
// float comparison would be unreliable.
func (p Point3D) Aeq(q Point3D, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol && math.Abs(p.Z-q.Z) <= tol
}

// MarshalJSON renders p as a [x, y, z] array, the wire form every document
// in this module uses for positions, rather than letting r3.Vec's exported
// fields marshal as an object.
func (p Point3D) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{p.X, p.Y, p.Z})
}

// UnmarshalJSON parses the [x, y, z] array format.
func (p *Point3D) UnmarshalJSON(data []byte) error {
	var xyz [3]float64
	if err := json.Unmarshal(data, &xyz); err != nil {
		return err
	}
	*p = NewPoint3D(xyz[0], xyz[1], xyz[2])
	return nil
}

// Point2D is a 2-element real vector, used for sensor-plane pixel
// coordinates and other 2D quantities. Built on gonum's r2.Vec.
type Point2D struct {
	r2.Vec
}

// NewPoint2D constructs a Point2D from its two components.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{r2.Vec{X: x, Y: y}}
}

// Add returns p+q.
func (p Point2D) Add(q Point2D) Point2D {
	return NewPoint2D(p.X+q.X, p.Y+q.Y)
}

// Sub returns p-q.
func (p Point2D) Sub(q Point2D) Point2D {
	return NewPoint2D(p.X-q.X, p.Y-q.Y)
}

// Scale returns p scaled by the scalar f.
func (p Point2D) Scale(f float64) Point2D {
	return NewPoint2D(p.X*f, p.Y*f)
}

// Dot returns the scalar product of p and q.
func (p Point2D) Dot(q Point2D) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Cross returns the scalar (2D) cross product p x q.
func (p Point2D) Cross(q Point2D) float64 {
	return p.X*q.Y - p.Y*q.X
}

// Length returns the Euclidean length of p.
func (p Point2D) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// Normalize returns p scaled to unit length, or p unchanged if it is zero.
func (p Point2D) Normalize() Point2D {
	l := p.Length()
	if l == 0 {
		return p
	}
	return p.Scale(1 / l)
}

// Aeq reports whether p and q are equal to within tol in every component.
func (p Point2D) Aeq(q Point2D, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol
}

// MarshalJSON renders p as a [x, y] array, the wire form used for pixel
// coordinates.
func (p Point2D) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON parses the [x, y] array format.
func (p *Point2D) UnmarshalJSON(data []byte) error {
	var xy [2]float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	*p = NewPoint2D(xy[0], xy[1])
	return nil
}
