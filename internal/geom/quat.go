package geom

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quat is a unit quaternion (r, i, j, k) representing a rotation. It wraps
// gonum's quat.Number for storage so the Hamilton product and conjugate
// below compose with the rest of the gonum numeric stack, while exposing
// the r/i/j/k field names this package's callers use.
type Quat struct {
	quat.Number
}

// Identity is the identity rotation.
var Identity = Quat{quat.Number{Real: 1}}

// NewQuat constructs a quaternion from its scalar (r) and vector (i, j, k)
// parts.
func NewQuat(r, i, j, k float64) Quat {
	return Quat{quat.Number{Real: r, Imag: i, Jmag: j, Kmag: k}}
}

// R, I, J, K return the individual components.
func (q Quat) R() float64 { return q.Real }
func (q Quat) I() float64 { return q.Imag }
func (q Quat) J() float64 { return q.Jmag }
func (q Quat) K() float64 { return q.Kmag }

// Mul returns the Hamilton product q*r (applies r first, then q).
func (q Quat) Mul(r Quat) Quat {
	return Quat{quat.Mul(q.Number, r.Number)}
}

// Conjugate returns the conjugate of q, which for a unit quaternion is also
// its inverse.
func (q Quat) Conjugate() Quat {
	return Quat{quat.Conj(q.Number)}
}

// Norm returns the quaternion's Euclidean norm.
func (q Quat) Norm() float64 {
	return quat.Abs(q.Number)
}

// Normalize returns q rescaled to unit norm. The identity quaternion is
// returned if q has zero norm.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 {
		return Identity
	}
	return Quat{quat.Scale(1/n, q.Number)}
}

// Apply rotates the 3-vector v by q, computing q*v*q-conjugate.
func (q Quat) Apply(v Point3D) Point3D {
	vq := quat.Number{Real: 0, Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rq := quat.Mul(quat.Mul(q.Number, vq), quat.Conj(q.Number))
	return NewPoint3D(rq.Imag, rq.Jmag, rq.Kmag)
}

// FromAxisAngle builds the unit quaternion that rotates by angle radians
// about the unit axis.
func FromAxisAngle(axis Point3D, angle float64) Quat {
	h := angle / 2
	s := math.Sin(h)
	return NewQuat(math.Cos(h), axis.X*s, axis.Y*s, axis.Z*s)
}

// AverageQuats computes the weighted average of a set of unit quaternions,
// renormalized to unit length. The naive component-wise weighted mean is not
// itself a rotation, so the result is renormalized.
//
// Quaternions are sign-aligned against the first entry before averaging
// since q and -q represent the same rotation but would otherwise cancel.
func AverageQuats(qs []Quat, weights []float64) Quat {
	if len(qs) == 0 {
		return Identity
	}
	ref := qs[0]
	var sum quat.Number
	for i, q := range qs {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if q.Real*ref.Real+q.Imag*ref.Imag+q.Jmag*ref.Jmag+q.Kmag*ref.Kmag < 0 {
			q = Quat{quat.Scale(-1, q.Number)}
		}
		sum = quat.Add(sum, quat.Scale(w, q.Number))
	}
	return Quat{sum}.Normalize()
}

// RotationOfVecToVec returns the shortest-arc unit quaternion that rotates
// unit vector from onto unit vector to, used throughout the pose-recovery
// pipeline to build a single-pair orientation estimate. Degenerate
// antiparallel inputs fall back to a 180-degree rotation about any axis
// perpendicular to from.
func RotationOfVecToVec(from, to Point3D) Quat {
	from = from.Normalize()
	to = to.Normalize()
	cosTheta := from.Dot(to)
	axis := from.Cross(to)
	axisLen := axis.Length()
	if axisLen < 1e-12 {
		if cosTheta > 0 {
			return Identity
		}
		perp := from.Cross(NewPoint3D(1, 0, 0))
		if perp.Length() < 1e-6 {
			perp = from.Cross(NewPoint3D(0, 1, 0))
		}
		return FromAxisAngle(perp.Normalize(), math.Pi)
	}
	theta := math.Atan2(axisLen, cosTheta)
	return FromAxisAngle(axis.Scale(1/axisLen), theta)
}

// MarshalJSON renders q as a [r, i, j, k] array, the wire form used for
// orientations, rather than letting quat.Number's exported fields marshal
// as an object.
func (q Quat) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{q.Real, q.Imag, q.Jmag, q.Kmag})
}

// UnmarshalJSON parses the [r, i, j, k] array format.
func (q *Quat) UnmarshalJSON(data []byte) error {
	var rijk [4]float64
	if err := json.Unmarshal(data, &rijk); err != nil {
		return err
	}
	*q = NewQuat(rijk[0], rijk[1], rijk[2], rijk[3])
	return nil
}

// Aeq reports whether q and r are equal to within tol in every component.
func (q Quat) Aeq(r Quat, tol float64) bool {
	return math.Abs(q.Real-r.Real) <= tol &&
		math.Abs(q.Imag-r.Imag) <= tol &&
		math.Abs(q.Jmag-r.Jmag) <= tol &&
		math.Abs(q.Kmag-r.Kmag) <= tol
}
