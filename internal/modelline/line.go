// Package modelline implements model-space lines tagged with the angle
// they subtend at an unknown camera position, the pair-selection chooser
// that builds a well-conditioned set of them from observed point mappings,
// and the discrete locus sweep that locates the camera.
package modelline

import (
	"math"

	"github.com/meridian-optics/photocal/internal/geom"
)

// Line is a line in model space defined by two distinct 3D points.
type Line struct {
	P0, P1 geom.Point3D
}

// NewLine builds a Line. Panics if p0 and p1 coincide: a degenerate line is
// a programming error, not a recoverable condition.
func NewLine(p0, p1 geom.Point3D) Line {
	if p0.Sub(p1).Length() <= 1e-10 {
		panic("modelline: Line endpoints must be distinct")
	}
	return Line{P0: p0, P1: p1}
}

// MidPoint returns the line's midpoint.
func (l Line) MidPoint() geom.Point3D {
	return l.P0.Add(l.P1).Scale(0.5)
}

// Direction returns the (non-unit) vector from P0 to P1.
func (l Line) Direction() geom.Point3D {
	return l.P1.Sub(l.P0)
}

// Length returns the Euclidean length of the line.
func (l Line) Length() float64 {
	return l.P1.Sub(l.P0).Length()
}

// UnitPerpendicular returns a unit vector perpendicular to Direction,
// chosen to be numerically stable even when Direction is near a coordinate
// axis: it first tries P0 x direction, falling back to crossing direction
// with each world axis in turn if that degenerates (P0 nearly on the
// line through the origin in its own direction).
func (l Line) UnitPerpendicular() geom.Point3D {
	direction := l.Direction().Normalize()
	k := l.P0.Cross(direction)
	if k.Length() > 0.001 {
		return k.Normalize()
	}
	for _, axis := range []geom.Point3D{geom.NewPoint3D(1, 0, 0), geom.NewPoint3D(0, 1, 0), geom.NewPoint3D(0, 0, 1)} {
		perp := direction.Cross(axis)
		if perp.Length() > 0.001 {
			return perp.Normalize()
		}
	}
	panic("modelline: unreachable: no perpendicular found")
}

// ClosestPointTo returns the point on the (infinite) line closest to p.
func (l Line) ClosestPointTo(p geom.Point3D) geom.Point3D {
	rel := p.Sub(l.P0)
	d := l.P1.Sub(l.P0)
	lenSq := d.LengthSq()
	t := rel.Dot(d) / lenSq
	return l.P0.Add(d.Scale(t))
}

// CosAngleSubtended returns cos(theta) where theta is the angle subtended
// by the line as seen from p.
func (l Line) CosAngleSubtended(p geom.Point3D) float64 {
	pp0 := p.Sub(l.P0)
	pp1 := p.Sub(l.P1)
	return pp0.Dot(pp1) / (pp0.Length() * pp1.Length())
}

// RadiusOfCircumcircle returns the radius of the circle through l.P0, l.P1
// and p (all three are coplanar, so this circle is well-defined unless the
// three points are collinear).
func (l Line) RadiusOfCircumcircle(p geom.Point3D) float64 {
	p0p := p.Sub(l.P0)
	p1p := p.Sub(l.P1)
	cross := p0p.Cross(p1p)
	return l.Length() * p0p.Length() * p1p.Length() / (2.0 * cross.Length())
}

// Subtended pairs a Line with the angle (theta, radians) it was observed to
// subtend at some (unknown) camera position. The locus of positions
// consistent with this observation is a surface of revolution around the
// line (an inscribed-angle torus).
type Subtended struct {
	Line  Line
	Theta float64

	cosTheta     float64
	sinTheta     float64
	midPoint     geom.Point3D
	length       float64
	circleRadius float64
}

// NewSubtended builds a Subtended and derives its cached geometry.
func NewSubtended(line Line, theta float64) Subtended {
	s := Subtended{Line: line, Theta: theta}
	s.derive()
	return s
}

func (s *Subtended) derive() {
	s.cosTheta = math.Cos(s.Theta)
	s.sinTheta = math.Sin(s.Theta)
	s.midPoint = s.Line.MidPoint()
	s.length = s.Line.Length()
	s.circleRadius = s.length / (2.0 * s.sinTheta)
}

// CircleRadius returns the radius of the inscribed-angle circle for Theta.
func (s Subtended) CircleRadius() float64 { return s.circleRadius }

// TorusRadius returns the radius of the surface of revolution's central
// circle (CircleRadius * cos(Theta)).
func (s Subtended) TorusRadius() float64 { return s.circleRadius * s.cosTheta }

// ErrorInP returns the signed difference between p's circumcircle radius
// and the locus's expected circle radius: zero when p lies exactly on the
// locus surface.
func (s Subtended) ErrorInP(p geom.Point3D) float64 {
	return s.Line.RadiusOfCircumcircle(p) - s.circleRadius
}

// ErrorInPAngle returns the difference between the angle the line actually
// subtends at p and Theta, in radians.
func (s Subtended) ErrorInPAngle(p geom.Point3D) float64 {
	return math.Acos(s.Line.CosAngleSubtended(p)) - s.Theta
}

// parametricPoint walks the torus-shaped locus of positions from which the
// line would be seen to subtend Theta: a surface of revolution around the
// line, parameterized by phi (rotation around the line) and theta (position
// on the circle generated for a given phi).
type parametricPoint struct {
	torusCenter  geom.Point3D
	torusRadius  float64
	circleRadius float64
	dx, dy, dz   geom.Point3D

	phiCircleCenter geom.Point3D
	phiDxy          geom.Point3D
}

func newParametricPoint(s Subtended) *parametricPoint {
	dz := s.Line.Direction().Normalize()
	dx := s.Line.UnitPerpendicular()
	dy := dz.Cross(dx)
	p := &parametricPoint{
		torusCenter:  s.midPoint,
		torusRadius:  s.TorusRadius(),
		circleRadius: s.circleRadius,
		dx:           dx,
		dy:           dy,
		dz:           dz,
	}
	p.deriveFromPhi(0)
	return p
}

func (p *parametricPoint) deriveFromPhi(phi float64) {
	cosPhi, sinPhi := math.Cos(phi), math.Sin(phi)
	rCosPhi := cosPhi * p.torusRadius
	rSinPhi := sinPhi * p.torusRadius
	p.phiCircleCenter = p.torusCenter.Add(p.dx.Scale(rCosPhi)).Add(p.dy.Scale(rSinPhi))
	p.phiDxy = p.dx.Scale(cosPhi * p.circleRadius).Add(p.dy.Scale(sinPhi * p.circleRadius))
}

func (p *parametricPoint) pointOfTheta(theta float64) geom.Point3D {
	cosTheta, sinTheta := math.Cos(theta), math.Sin(theta)
	return p.phiCircleCenter.Sub(p.phiDxy.Scale(cosTheta)).Add(p.dz.Scale(sinTheta * p.circleRadius))
}

// Surface returns every point of the discrete nPhi x nTheta sampling of the
// locus surface described by s. nPhi must be >= 1 and nTheta >= 2.
func (s Subtended) Surface(nPhi, nTheta int) []geom.Point3D {
	if nPhi < 1 {
		panic("modelline: Surface requires nPhi >= 1")
	}
	if nTheta < 2 {
		panic("modelline: Surface requires nTheta >= 2")
	}
	pp := newParametricPoint(s)
	phiPerI := 2 * math.Pi / float64(nPhi)
	thetaRange := 2*math.Pi - 2*s.Theta
	thetaPerI := thetaRange / float64(nTheta+1)
	thetaBase := s.Theta + thetaPerI

	out := make([]geom.Point3D, 0, nPhi*nTheta)
	for iPhi := 0; iPhi < nPhi; iPhi++ {
		pp.deriveFromPhi(phiPerI * float64(iPhi))
		for iTheta := 0; iTheta < nTheta; iTheta++ {
			theta := thetaBase + thetaPerI*float64(iTheta)
			out = append(out, pp.pointOfTheta(theta))
		}
	}
	return out
}
