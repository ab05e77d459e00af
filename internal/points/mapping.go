package points

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/ray"
)

// PointMapping is a single image's observation of a NamedPoint: the pixel
// it was seen at, and the error radius (in pixels) of that observation.
type PointMapping struct {
	Point  *NamedPoint
	Screen geom.Point2D
	Error  float64
}

// NewPointMapping builds a PointMapping.
func NewPointMapping(point *NamedPoint, screen geom.Point2D, errorPx float64) PointMapping {
	return PointMapping{Point: point, Screen: screen, Error: errorPx}
}

// IsMapped reports whether the referenced NamedPoint has a known model
// position.
func (pm PointMapping) IsMapped() bool { return pm.Point.IsMapped() }

// Name returns the referenced point's name.
func (pm PointMapping) Name() string { return pm.Point.Name }

// Model returns the referenced point's model position (zero value if
// unmapped).
func (pm PointMapping) Model() geom.Point3D {
	if pm.Point.Model == nil {
		return geom.Point3D{}
	}
	return pm.Point.Model.Position
}

// MappedUnitVector returns the camera-space unit direction of the observed
// pixel, without applying the camera's orientation.
func (pm PointMapping) MappedUnitVector(c *camera.Instance) geom.Point3D {
	return c.PxAbsXYToCameraTxty(pm.Screen).Unit()
}

// MappedWorldDir returns the world-space direction from the camera toward
// the observed pixel: the camera-space unit vector rotated into world space
// and negated, since the camera-space optical axis points away from the
// scene.
func (pm PointMapping) MappedWorldDir(c *camera.Instance) geom.Point3D {
	camTxty := c.PxAbsXYToCameraTxty(pm.Screen)
	return c.CameraToWorldDir(camTxty.Unit()).Scale(-1)
}

// MappedRay builds a Ray from this mapping's observation: its tan-error is
// derived from the worst-case angular deviation of the four axis-aligned
// perturbations of Screen by +-Error pixels. If fromCamera is true the ray
// starts at the camera
// position and points toward the observation; otherwise it starts at the
// model position and points back toward the camera.
func (pm PointMapping) MappedRay(c *camera.Instance, fromCamera bool) ray.Ray {
	worldDir := pm.MappedWorldDir(c)

	minCos := 1.0
	perturbations := [4]geom.Point2D{
		geom.NewPoint2D(-pm.Error, 0),
		geom.NewPoint2D(pm.Error, 0),
		geom.NewPoint2D(0, -pm.Error),
		geom.NewPoint2D(0, pm.Error),
	}
	for _, e := range perturbations {
		errScreen := pm.Screen.Add(e)
		errCamTxty := c.PxAbsXYToCameraTxty(errScreen)
		worldErrVec := c.CameraToWorldDir(errCamTxty.Unit()).Scale(-1)
		dot := worldDir.Dot(worldErrVec)
		if dot < minCos {
			minCos = dot
		}
	}
	tanErrorSq := 1.0/(minCos*minCos) - 1.0
	if tanErrorSq < 0 {
		tanErrorSq = 0
	}
	tanError := math.Sqrt(tanErrorSq)

	if fromCamera {
		return ray.New(c.Position, worldDir, tanError)
	}
	return ray.New(pm.Model(), worldDir.Scale(-1), tanError)
}

// MappedDPXY returns the pixel-space reprojection error: the observed
// screen position minus the model point's projection through c. ok is
// false if the point is unmapped.
func (pm PointMapping) MappedDPXY(c *camera.Instance) (geom.Point2D, bool) {
	if !pm.IsMapped() {
		return geom.Point2D{}, false
	}
	projected, ok := c.WorldToPxAbsXY(pm.Model())
	if !ok {
		return geom.Point2D{}, false
	}
	return pm.Screen.Sub(projected), true
}

// MappedSquaredError returns the robustified squared reprojection error
// esq^2/(esq+error^2): about esq^2/error^2 for offsets well inside the
// error radius and about esq (linear rather than quadratic in esq) for
// offsets well outside it. Returns 0 for an unmapped point.
func (pm PointMapping) MappedSquaredError(c *camera.Instance) float64 {
	dpxy, ok := pm.MappedDPXY(c)
	if !ok {
		return 0
	}
	esq := dpxy.Dot(dpxy)
	return esq * esq / (esq + pm.Error*pm.Error)
}

// PointMappingSet is the ordered list of point mappings observed in one
// image.
type PointMappingSet struct {
	mappings []PointMapping
}

// NewPointMappingSet returns an empty set.
func NewPointMappingSet() *PointMappingSet {
	return &PointMappingSet{}
}

// Add appends a mapping by resolving name against nps. ok is false if the
// name is not present in nps.
func (s *PointMappingSet) Add(nps *NamedPointSet, name string, screen geom.Point2D, errorPx float64) bool {
	np, ok := nps.Get(name)
	if !ok {
		return false
	}
	s.mappings = append(s.mappings, NewPointMapping(np, screen, errorPx))
	return true
}

// Remove deletes the mapping at index n.
func (s *PointMappingSet) Remove(n int) bool {
	if n < 0 || n >= len(s.mappings) {
		return false
	}
	s.mappings = append(s.mappings[:n], s.mappings[n+1:]...)
	return true
}

// Merge appends every mapping of other onto s.
func (s *PointMappingSet) Merge(other *PointMappingSet) {
	s.mappings = append(s.mappings, other.mappings...)
}

// Mappings returns the set's mappings in insertion order.
func (s *PointMappingSet) Mappings() []PointMapping { return s.mappings }

// Len returns the number of mappings.
func (s *PointMappingSet) Len() int { return len(s.mappings) }

// RebuildWithNamedPointSet re-resolves every mapping's NamedPoint pointer
// against nps, removing (and returning) any mapping whose name nps no
// longer has. Used after deserializing a PointMappingSet, whose references
// must all resolve; unresolved entries are reported as warnings and
// removed.
func (s *PointMappingSet) RebuildWithNamedPointSet(nps *NamedPointSet) []PointMapping {
	var kept []PointMapping
	var removed []PointMapping
	for _, pm := range s.mappings {
		if np, ok := nps.Get(pm.Name()); ok {
			pm.Point = np
			kept = append(kept, pm)
		} else {
			removed = append(removed, pm)
		}
	}
	s.mappings = kept
	return removed
}

// UnresolvedWarning formats the names dropped by RebuildWithNamedPointSet
// into a single human-readable warning string, or "" if none were dropped.
func UnresolvedWarning(removed []PointMapping) string {
	if len(removed) == 0 {
		return ""
	}
	msg := "point mapping set: unresolved references dropped:"
	sep := " "
	for _, pm := range removed {
		msg += fmt.Sprintf("%s%q", sep, pm.Point.Name)
		sep = ", "
	}
	return msg
}

// ScreenPoints returns every mapping's observed screen pixel.
func (s *PointMappingSet) ScreenPoints() []geom.Point2D {
	out := make([]geom.Point2D, len(s.mappings))
	for i, pm := range s.mappings {
		out[i] = pm.Screen
	}
	return out
}

// CentroidOfScreenPoints returns the centroid of every mapping's observed
// screen pixel, or the zero point for an empty set.
func (s *PointMappingSet) CentroidOfScreenPoints() geom.Point2D {
	if len(s.mappings) == 0 {
		return geom.Point2D{}
	}
	var sum geom.Point2D
	for _, pm := range s.mappings {
		sum = sum.Add(pm.Screen)
	}
	return sum.Scale(1 / float64(len(s.mappings)))
}

// TotalError sums MappedSquaredError across every mapping.
func (s *PointMappingSet) TotalError(c *camera.Instance) float64 {
	var total float64
	for _, pm := range s.mappings {
		total += pm.MappedSquaredError(c)
	}
	return total
}

// FindWorstError returns the index and squared error of the mapping with
// the largest reprojection error under c.
func (s *PointMappingSet) FindWorstError(c *camera.Instance) (int, float64) {
	worstN, worstE := 0, 0.0
	for i, pm := range s.mappings {
		if e := pm.MappedSquaredError(c); e > worstE {
			worstN, worstE = i, e
		}
	}
	return worstN, worstE
}

// LoadPointMappingSet parses the point-mapping-set JSON document: a JSON
// array of [name, [px, py], error], resolving each name against nps.
// Entries whose name does not resolve are dropped and reported in warnings
// rather than failing the whole load.
func LoadPointMappingSet(data []byte, nps *NamedPointSet) (*PointMappingSet, []string, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("points: decode point mapping set: %w", err)
	}

	s := NewPointMappingSet()
	var warnings []string
	for i, entry := range raw {
		if len(entry) != 3 {
			return nil, nil, fmt.Errorf("points: mapping entry %d must be [name, [px,py], error]", i)
		}
		var name string
		if err := json.Unmarshal(entry[0], &name); err != nil {
			return nil, nil, fmt.Errorf("points: entry %d: decode name: %w", i, err)
		}
		var px [2]float64
		if err := json.Unmarshal(entry[1], &px); err != nil {
			return nil, nil, fmt.Errorf("points: entry %d: decode screen xy: %w", i, err)
		}
		var errPx float64
		if err := json.Unmarshal(entry[2], &errPx); err != nil {
			return nil, nil, fmt.Errorf("points: entry %d: decode error: %w", i, err)
		}
		if !s.Add(nps, name, geom.NewPoint2D(px[0], px[1]), errPx) {
			warnings = append(warnings, fmt.Sprintf("unresolved point mapping reference %q", name))
		}
	}
	return s, warnings, nil
}

// Save serializes s to the point-mapping-set JSON document format.
func (s *PointMappingSet) Save() ([]byte, error) {
	raw := make([][]interface{}, 0, len(s.mappings))
	for _, m := range s.mappings {
		raw = append(raw, []interface{}{m.Name(), [2]float64{m.Screen.X, m.Screen.Y}, m.Error})
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("points: encode point mapping set: %w", err)
	}
	return data, nil
}
