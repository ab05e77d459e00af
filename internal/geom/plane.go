package geom

import "gonum.org/v1/gonum/mat"

// Plane is a plane in 3-space: a unit normal, the signed distance from the
// origin along that normal, and two orthonormal in-plane tangent vectors
// used for 2D<->3D mapping within the plane.
type Plane struct {
	Normal   Point3D
	Distance float64
	TangentU Point3D
	TangentV Point3D
}

// NewPlane builds a Plane from a unit normal and signed distance, deriving
// two orthonormal in-plane tangents.
func NewPlane(normal Point3D, distance float64) Plane {
	normal = normal.Normalize()
	return Plane{Normal: normal, Distance: distance, TangentU: stableTangent(normal), TangentV: normal.Cross(stableTangent(normal))}
}

// stableTangent picks a unit vector perpendicular to n that is numerically
// stable even when n is near a coordinate axis, by crossing n with the
// world X axis, or with the Y axis when X is n's dominant component.
func stableTangent(n Point3D) Point3D {
	axis := NewPoint3D(1, 0, 0)
	if absf(n.X) > absf(n.Y) && absf(n.X) > absf(n.Z) {
		axis = NewPoint3D(0, 1, 0)
	}
	return n.Cross(axis).Normalize()
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Project returns the point on the plane closest to p.
func (pl Plane) Project(p Point3D) Point3D {
	d := p.Dot(pl.Normal) - pl.Distance
	return p.Sub(pl.Normal.Scale(d))
}

// To2D maps a point known to lie on (or near) the plane to in-plane 2D
// coordinates relative to the plane's own origin (Normal*Distance).
func (pl Plane) To2D(p Point3D) Point2D {
	origin := pl.Normal.Scale(pl.Distance)
	rel := p.Sub(origin)
	return NewPoint2D(rel.Dot(pl.TangentU), rel.Dot(pl.TangentV))
}

// To3D maps in-plane 2D coordinates back to a 3D point on the plane.
func (pl Plane) To3D(p Point2D) Point3D {
	origin := pl.Normal.Scale(pl.Distance)
	return origin.Add(pl.TangentU.Scale(p.X)).Add(pl.TangentV.Scale(p.Y))
}

// BestFitPlane finds the plane minimizing the sum of squared perpendicular
// distances to pts, by building the 3x3 covariance matrix about the
// centroid and taking the eigenvector of smallest eigenvalue as the normal.
// Returns ok=false for fewer than 3 points.
func BestFitPlane(pts []Point3D) (Plane, bool) {
	if len(pts) < 3 {
		return Plane{}, false
	}
	var centroid Point3D
	for _, p := range pts {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Div(float64(len(pts)))

	var cov [6]float64 // xx, xy, xz, yy, yz, zz
	for _, p := range pts {
		d := p.Sub(centroid)
		cov[0] += d.X * d.X
		cov[1] += d.X * d.Y
		cov[2] += d.X * d.Z
		cov[3] += d.Y * d.Y
		cov[4] += d.Y * d.Z
		cov[5] += d.Z * d.Z
	}
	sym := mat.NewSymDense(3, []float64{
		cov[0], cov[1], cov[2],
		cov[1], cov[3], cov[4],
		cov[2], cov[4], cov[5],
	})

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return Plane{}, false
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	minIdx := 0
	for i, v := range values {
		if v < values[minIdx] {
			minIdx = i
		}
	}
	normal := NewPoint3D(vectors.At(0, minIdx), vectors.At(1, minIdx), vectors.At(2, minIdx)).Normalize()
	distance := centroid.Dot(normal)
	return NewPlane(normal, distance), true
}
