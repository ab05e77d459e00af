// Package pose recovers a camera's position and orientation from a set of
// observed point mappings.
package pose

import (
	"fmt"
	"math"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/modelline"
	"github.com/meridian-optics/photocal/internal/points"
	"github.com/meridian-optics/photocal/internal/ray"
)

// CoarseLocation estimates a camera position by intersecting the
// subtended-angle locus surfaces of every line in mls, scored by total
// squared angular error. This is the pose pipeline's first stage.
func CoarseLocation(mls *modelline.Set, nPhi, nTheta int) (geom.Point3D, float64) {
	return mls.FindBestMinErrLocation(nPhi, nTheta)
}

// LocationGivenDirection estimates the camera position given its current
// orientation, by intersecting rays from each mapped model point through
// the camera's observed direction for that point, weighted by the inverse
// of each ray's tan-error. ok is false if mappings has no mapped points.
func LocationGivenDirection(c *camera.Instance, mappings *points.PointMappingSet) (geom.Point3D, bool) {
	var rays []ray.Ray
	for _, pm := range mappings.Mappings() {
		if !pm.IsMapped() {
			continue
		}
		rays = append(rays, pm.MappedRay(c, false))
	}
	return ray.ClosestPoint(rays, func(r ray.Ray) float64 {
		if r.TanError == 0 {
			return 1e12
		}
		return 1.0 / r.TanError
	})
}

// OrientUsingRaysFromModel estimates the camera's orientation from scratch,
// independent of any previous orientation estimate, by building one
// candidate rotation per ordered pair of mapped points (the qi_c* . qz . qi_m
// construction) and averaging them. It requires at least 3 mapped points
// and panics otherwise. It sets c.Orientation and returns the resulting
// total reprojection error.
func OrientUsingRaysFromModel(c *camera.Instance, mappings *points.PointMappingSet) float64 {
	mapped := mappedIndices(mappings)
	if len(mapped) <= 2 {
		panic("pose: OrientUsingRaysFromModel requires at least 3 mapped points")
	}

	var qs []geom.Quat
	for _, i := range mapped {
		pmI := mappings.Mappings()[i]
		diC := pmI.MappedUnitVector(c).Scale(-1)
		diM := pmI.Model().Sub(c.Position).Normalize()

		for _, j := range mapped {
			if i == j {
				continue
			}
			pmJ := mappings.Mappings()[j]
			djC := pmJ.MappedUnitVector(c).Scale(-1)
			djM := pmJ.Model().Sub(c.Position).Normalize()

			qs = append(qs, orientationMappingVpairToPpair(diM, djM, diC, djC))
		}
	}

	qr := geom.AverageQuats(qs, nil)
	c.Orientation = qr
	return mappings.TotalError(c)
}

// orientationMappingVpairToPpair returns the rotation mapping a pair of
// model-space directions (diM, djM) onto the matching pair of camera-space
// directions (diC, djC): align diM/diC to the Z axis independently, then
// derive the residual rotation about Z that aligns djM to djC in that
// shared frame.
func orientationMappingVpairToPpair(diM, djM, diC, djC geom.Point3D) geom.Quat {
	zAxis := geom.NewPoint3D(0, 0, 1)
	qiC := geom.RotationOfVecToVec(diC, zAxis)
	qiM := geom.RotationOfVecToVec(diM, zAxis)

	djCRotated := qiC.Apply(djC)
	djMRotated := qiM.Apply(djM)

	thetaDjM := math.Atan2(djMRotated.X, djMRotated.Y)
	thetaDjC := math.Atan2(djCRotated.X, djCRotated.Y)
	theta := thetaDjM - thetaDjC

	qz := geom.FromAxisAngle(zAxis, theta)
	return qiC.Conjugate().Mul(qz).Mul(qiM)
}

// ReorientUsingRaysFromModel iteratively refines c's current orientation:
// each round builds one candidate rotation per mapped point (from the
// camera-observed direction to the model-implied direction, via
// RotationOfVecToVec) plus a stabilizing identity vote weighted at 10*n,
// averages them, and applies the incremental rotation. It stops as soon as
// an iteration fails to reduce total error, restoring the orientation from
// before that iteration. It returns the best total error reached.
func ReorientUsingRaysFromModel(c *camera.Instance, mappings *points.PointMappingSet) float64 {
	lastTE := mappings.TotalError(c)
	for {
		mapped := mappedIndices(mappings)
		n := len(mapped)
		initialOrientation := c.Orientation

		qs := []geom.Quat{geom.Identity}
		weights := []float64{10 * float64(n)}
		for _, i := range mapped {
			pm := mappings.Mappings()[i]
			dC := pm.MappedWorldDir(c)
			dM := pm.Model().Sub(c.Position).Normalize()
			qs = append(qs, geom.RotationOfVecToVec(dC, dM))
			weights = append(weights, 1.0)
		}
		qr := geom.AverageQuats(qs, weights)

		// qr acts on world-space directions and Orientation maps world to
		// camera space, so the world-frame correction is applied first.
		c.Orientation = initialOrientation.Mul(qr.Conjugate())
		te := mappings.TotalError(c)
		if te >= lastTE {
			c.Orientation = initialOrientation
			break
		}
		lastTE = te
	}
	return lastTE
}

// Result is the outcome of a full pose-recovery run.
type Result struct {
	TotalError float64
	WorstError float64
	WorstIndex int
	Iterations int
}

// Recover runs the pipeline's refinement stage from c's current pose as a
// starting point (it does not run CoarseLocation or
// OrientUsingRaysFromModel itself): it alternates LocationGivenDirection and
// ReorientUsingRaysFromModel until neither changes the total error by more
// than tol, or maxIterations rounds have elapsed. c must already carry an
// initial orientation estimate (typically from OrientUsingRaysFromModel or a
// prior calibration); c.Position and c.Orientation are updated in place.
func Recover(c *camera.Instance, mappings *points.PointMappingSet, maxIterations int, tol float64) (Result, error) {
	if mappings.Len() == 0 {
		return Result{}, fmt.Errorf("pose: Recover requires at least one point mapping")
	}

	lastTE := mappings.TotalError(c)
	iterations := 0
	for ; iterations < maxIterations; iterations++ {
		if loc, ok := LocationGivenDirection(c, mappings); ok {
			c.Position = loc
		}
		te := ReorientUsingRaysFromModel(c, mappings)
		if lastTE-te < tol {
			lastTE = te
			break
		}
		lastTE = te
	}

	worstIdx, worstErr := mappings.FindWorstError(c)
	return Result{
		TotalError: lastTE,
		WorstError: worstErr,
		WorstIndex: worstIdx,
		Iterations: iterations,
	}, nil
}

func mappedIndices(mappings *points.PointMappingSet) []int {
	var out []int
	for i, pm := range mappings.Mappings() {
		if pm.IsMapped() {
			out = append(out, i)
		}
	}
	return out
}
