package modelline

import (
	"math"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/points"
)

// Set accumulates Subtended model lines derived from a single image's point
// mappings, and locates the camera position consistent with all of them.
type Set struct {
	lines []Subtended
}

// NewSet returns an empty Set.
func NewSet() *Set { return &Set{} }

// Lines returns every Subtended line currently in the set.
func (s *Set) Lines() []Subtended { return s.lines }

// Len returns the number of lines in the set.
func (s *Set) Len() int { return len(s.lines) }

// AddLine adds a line between two mapped points, with the subtended angle
// derived from the camera-space directions the two mappings were observed
// at. Both mappings must be mapped; ok is false and nothing is added
// otherwise.
func (s *Set) AddLine(c *camera.Instance, pm0, pm1 points.PointMapping) bool {
	if !pm0.IsMapped() || !pm1.IsMapped() {
		return false
	}
	dir0 := pm0.MappedUnitVector(c)
	dir1 := pm1.MappedUnitVector(c)
	cosTheta := dir0.Dot(dir1)
	if cosTheta > 1 {
		cosTheta = 1
	} else if cosTheta < -1 {
		cosTheta = -1
	}
	theta := math.Acos(cosTheta)
	line := NewLine(pm0.Model(), pm1.Model())
	s.lines = append(s.lines, NewSubtended(line, theta))
	return true
}

// AddLineOfModels adds a line directly from two model-space points and a
// known subtended angle, used when the angle has already been derived from
// some other source.
func (s *Set) AddLineOfModels(p0, p1 geom.Point3D, theta float64) bool {
	if p0.Eq(p1) {
		return false
	}
	s.lines = append(s.lines, NewSubtended(NewLine(p0, p1), theta))
	return true
}

// AddGoodLines selects up to maxPairs well-conditioned point pairs from pms
// via GoodScreenPairs and adds a line for each.
func (s *Set) AddGoodLines(c *camera.Instance, pms *points.PointMappingSet, maxPairs int, filter func(int, points.PointMapping) bool) {
	mappings := pms.Mappings()
	for _, pair := range GoodScreenPairs(pms, maxPairs, filter) {
		s.AddLine(c, mappings[pair[0]], mappings[pair[1]])
	}
}

// FindBestMinErrLocation sweeps every line's subtended-angle locus surface
// (sampled at nPhi x nTheta discrete points) as a source of candidate camera
// positions, scores each candidate by the total squared angular error it
// produces across every line in the set, and returns the position with the
// smallest such error together with that error.
func (s *Set) FindBestMinErrLocation(nPhi, nTheta int) (geom.Point3D, float64) {
	var best geom.Point3D
	bestErr := math.Inf(1)
	found := false

	for _, line := range s.lines {
		for _, candidate := range line.Surface(nPhi, nTheta) {
			e := s.totalSquaredAngleError(candidate)
			if !found || e < bestErr {
				found = true
				bestErr = e
				best = candidate
			}
		}
	}
	return best, bestErr
}

func (s *Set) totalSquaredAngleError(p geom.Point3D) float64 {
	var total float64
	for _, line := range s.lines {
		e := line.ErrorInPAngle(p)
		total += e * e
	}
	return total
}

// goodScreenPairPt tracks one mapped screen point's offset from the
// centroid, for use by the good-pair chooser below.
type goodScreenPairPt struct {
	pmsIndex int
	useCount int
	length   float64
	pxy      geom.Point2D
}

func newGoodScreenPairPt(pmsIndex int, cog geom.Point2D, screen geom.Point2D) goodScreenPairPt {
	pxy := screen.Sub(cog)
	return goodScreenPairPt{pmsIndex: pmsIndex, pxy: pxy, length: pxy.Length()}
}

// GoodScreenPairs picks up to maxPairs pairs of mapped points, biased toward
// points far from the observation centroid and toward directions not yet
// well represented by previously chosen pairs, so that the resulting model
// lines are well spread for intersection. filter additionally restricts
// which mappings are eligible by their index in pms.Mappings().
func GoodScreenPairs(pms *points.PointMappingSet, maxPairs int, filter func(int, points.PointMapping) bool) [][2]int {
	cog := pms.CentroidOfScreenPoints()

	var pts []goodScreenPairPt
	for i, pm := range pms.Mappings() {
		if !pm.IsMapped() {
			continue
		}
		if filter != nil && !filter(i, pm) {
			continue
		}
		pts = append(pts, newGoodScreenPairPt(i, cog, pm.Screen))
	}

	// Order candidates by distance from the centroid, descending, so the
	// widest-spread points seed the first pairs.
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && pts[j].length > pts[j-1].length; j-- {
			pts[j], pts[j-1] = pts[j-1], pts[j]
		}
	}

	var usedDpxy []geom.Point2D
	used := map[[2]int]bool{}

	var out [][2]int
	for len(out) < maxPairs && len(pts) > 1 {
		pms0 := pts[0].pmsIndex

		bestD := 0.0
		bestN := 0
		var bestDpxy geom.Point2D
		for i := 1; i < len(pts); i++ {
			pmsI := pts[i].pmsIndex
			if used[[2]int{pms0, pmsI}] {
				continue
			}
			dpxy := pts[0].pxy.Sub(pts[i].pxy)
			d := dpxy.Length()
			for _, u := range usedDpxy {
				d += math.Abs(dpxy.X*u.Y - dpxy.Y*u.X)
			}
			d /= float64(pts[i].useCount + 1)
			if d > bestD {
				bestD, bestN, bestDpxy = d, i, dpxy
			}
		}
		if bestN == 0 {
			break
		}

		pmsN := pts[bestN].pmsIndex
		usedDpxy = append(usedDpxy, bestDpxy)
		used[[2]int{pms0, pmsN}] = true
		used[[2]int{pmsN, pms0}] = true
		pts[0].useCount++
		pts[bestN].useCount++
		out = append(out, [2]int{pms0, pmsN})

		// Rotate the queue left by one so every point gets a turn as the
		// pivot.
		pts = append(pts[1:], pts[0])
	}
	return out
}
