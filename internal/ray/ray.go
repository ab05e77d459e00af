// Package ray implements rays-with-error in 3-space and the weighted
// least-squares closest point to a bundle of them.
package ray

import (
	"encoding/json"
	"fmt"

	"github.com/meridian-optics/photocal/internal/geom"
)

// Ray is a line through Start in direction Direction (normalized on
// construction), with TanError giving the half-angle (as a tangent) of the
// cone of uncertainty around the ray: at distance k along the ray, the
// error radius is k*TanError.
type Ray struct {
	Start     geom.Point3D
	Direction geom.Point3D
	TanError  float64
}

// New builds a Ray, normalizing direction.
func New(start, direction geom.Point3D, tanError float64) Ray {
	return Ray{Start: start, Direction: direction.Normalize(), TanError: tanError}
}

// Distances returns (k, dSq): k is the signed distance along the ray to the
// foot of the perpendicular from pt, and dSq is the squared perpendicular
// distance from pt to the ray.
func (r Ray) Distances(pt geom.Point3D) (k, dSq float64) {
	pMinusA := pt.Sub(r.Start)
	k = pMinusA.Dot(r.Direction)
	cross := pMinusA.Cross(r.Direction)
	return k, cross.LengthSq()
}

// WeightFunc assigns a non-negative weight to a ray for use in
// ClosestPoint. A weight of 0 excludes it, and the typical weight is some
// function of 1/TanError so the most confident rays dominate.
type WeightFunc func(r Ray) float64

// UnitWeight weighs every ray equally.
func UnitWeight(Ray) float64 { return 1 }

// ClosestPoint finds the point whose total weighted squared perpendicular
// distance to every ray in rays is minimized. It sets up the 3x3 normal
// equations for this least-squares problem and solves them with
// geom.Matrix3.Solve, returning ok=false if the system is singular (e.g.
// all rays are parallel, or rays is empty).
func ClosestPoint(rays []Ray, weight WeightFunc) (geom.Point3D, bool) {
	if len(rays) == 0 {
		return geom.Point3D{}, false
	}
	if weight == nil {
		weight = UnitWeight
	}

	var m geom.Matrix3
	var v [3]float64
	for _, r := range rays {
		w := weight(r)
		ax, ay, az := r.Start.X, r.Start.Y, r.Start.Z
		bx, by, bz := r.Direction.X, r.Direction.Y, r.Direction.Z

		m.M[0][0] += w * (by*by + bz*bz)
		m.M[0][1] += w * (-bx * by)
		m.M[0][2] += w * (-bx * bz)
		v[0] += w * (ax*(by*by+bz*bz) - ay*bx*by - az*bx*bz)

		m.M[1][0] += w * (-by * bx)
		m.M[1][1] += w * (bx*bx + bz*bz)
		m.M[1][2] += w * (-by * bz)
		v[1] += w * (ay*(bx*bx+bz*bz) - ax*bx*by - az*by*bz)

		m.M[2][0] += w * (-bz * bx)
		m.M[2][1] += w * (-bz * by)
		m.M[2][2] += w * (by*by + bx*bx)
		v[2] += w * (az*(by*by+bx*bx) - ax*bx*bz - ay*by*bz)
	}

	x, ok := m.Solve(v)
	if !ok {
		return geom.Point3D{}, false
	}
	return geom.NewPoint3D(x[0], x[1], x[2]), true
}

// NamedRay pairs a Ray with the name of the point it was cast toward, the
// entry shape of the ray-list document.
type NamedRay struct {
	Name string
	Ray  Ray
}

// RayList is an ordered collection of NamedRays, serialized as a JSON
// array of [name, {start:[x,y,z], direction:[x,y,z], tan_error}].
type RayList []NamedRay

// rayJSON mirrors one ray's JSON object: start/direction arrays render
// through geom.Point3D's own MarshalJSON/UnmarshalJSON.
type rayJSON struct {
	Start     geom.Point3D `json:"start"`
	Direction geom.Point3D `json:"direction"`
	TanError  float64      `json:"tan_error"`
}

// LoadRayList parses a ray list JSON document.
func LoadRayList(data []byte) (RayList, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ray: decode ray list: %w", err)
	}

	out := make(RayList, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 2 {
			return nil, fmt.Errorf("ray: entry %d must be [name, {start,direction,tan_error}]", i)
		}
		var name string
		if err := json.Unmarshal(entry[0], &name); err != nil {
			return nil, fmt.Errorf("ray: entry %d: decode name: %w", i, err)
		}
		var rj rayJSON
		if err := json.Unmarshal(entry[1], &rj); err != nil {
			return nil, fmt.Errorf("ray: entry %d: decode ray: %w", i, err)
		}
		out = append(out, NamedRay{Name: name, Ray: New(rj.Start, rj.Direction, rj.TanError)})
	}
	return out, nil
}

// Save serializes l to the ray list JSON document format.
func (l RayList) Save() ([]byte, error) {
	raw := make([][2]interface{}, len(l))
	for i, nr := range l {
		raw[i] = [2]interface{}{
			nr.Name,
			rayJSON{Start: nr.Ray.Start, Direction: nr.Ray.Direction, TanError: nr.Ray.TanError},
		}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ray: encode ray list: %w", err)
	}
	return data, nil
}
