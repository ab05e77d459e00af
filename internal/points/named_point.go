// Package points implements named 3D model points and the per-image
// point-mapping observations that reference them.
package points

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/meridian-optics/photocal/internal/geom"
)

// Model is a 3D model position with its uncertainty radius, in mm.
type Model struct {
	Position    geom.Point3D
	Uncertainty float64
}

// NamedPoint is a point in model space identified by name. Its model
// position may be unknown (nil) until filled in by cross-image ray
// intersection. NamedPoint is shared by reference: PointMapping and
// NamedPointSet both hold a *NamedPoint so that resolving a model position
// on one updates every observer.
type NamedPoint struct {
	Name  string
	Color Color
	Model *Model
}

// NewNamedPoint constructs a NamedPoint. model may be nil for an as-yet
// unmapped point.
func NewNamedPoint(name string, color Color, model *Model) *NamedPoint {
	return &NamedPoint{Name: name, Color: color, Model: model}
}

// IsUnmapped reports whether np has no known model position.
func (np *NamedPoint) IsUnmapped() bool { return np.Model == nil }

// IsMapped reports whether np has a known model position.
func (np *NamedPoint) IsMapped() bool { return np.Model != nil }

// SetModel sets (or clears, with nil) np's model position.
func (np *NamedPoint) SetModel(model *Model) { np.Model = model }

func (np *NamedPoint) String() string {
	if np.Model == nil {
		return fmt.Sprintf("%s %s unmapped", np.Name, np.Color)
	}
	return fmt.Sprintf("%s %s @%v +- %.2f", np.Name, np.Color, np.Model.Position, np.Model.Uncertainty)
}

// NamedPointSet is an insertion-ordered (for iteration) but name-ordered
// (for deterministic serialization) collection of NamedPoints.
type NamedPointSet struct {
	points map[string]*NamedPoint
	names  []string
}

// NewNamedPointSet returns an empty set.
func NewNamedPointSet() *NamedPointSet {
	return &NamedPointSet{points: map[string]*NamedPoint{}}
}

// Add inserts np. If the name is already present, np is ignored: callers
// that want to update an existing point's model should go through Merge or
// mutate the *NamedPoint returned by Get directly.
func (s *NamedPointSet) Add(np *NamedPoint) {
	if _, exists := s.points[np.Name]; exists {
		return
	}
	s.points[np.Name] = np
	s.names = append(s.names, np.Name)
}

// AddPoint is a convenience constructor+Add.
func (s *NamedPointSet) AddPoint(name string, color Color, model *Model) {
	s.Add(NewNamedPoint(name, color, model))
}

// Get looks up a point by name.
func (s *NamedPointSet) Get(name string) (*NamedPoint, bool) {
	np, ok := s.points[name]
	return np, ok
}

// Has reports whether a point with np's name is already in the set.
func (s *NamedPointSet) Has(np *NamedPoint) bool {
	_, ok := s.points[np.Name]
	return ok
}

// Len returns the number of points in the set.
func (s *NamedPointSet) Len() int { return len(s.names) }

// SortedNames returns the set's names in sorted (deterministic
// serialization) order.
func (s *NamedPointSet) SortedNames() []string {
	out := append([]string(nil), s.names...)
	sort.Strings(out)
	return out
}

// Merge folds other into s: points s doesn't have are added; for points
// both sets share, an unknown model position in s is filled from a known
// position in other, but a known position in s is never overwritten.
func (s *NamedPointSet) Merge(other *NamedPointSet) {
	for _, name := range other.names {
		otherNp := other.points[name]
		existing, ok := s.points[name]
		if !ok {
			s.Add(&NamedPoint{Name: otherNp.Name, Color: otherNp.Color, Model: otherNp.Model})
			continue
		}
		if existing.IsUnmapped() && otherNp.IsMapped() {
			existing.SetModel(otherNp.Model)
		}
	}
}

// OfColor returns every point whose color exactly matches c.
func (s *NamedPointSet) OfColor(c Color) []*NamedPoint {
	var out []*NamedPoint
	for _, name := range s.names {
		if np := s.points[name]; np.Color.Eq(c) {
			out = append(out, np)
		}
	}
	return out
}

// LoadNamedPointSet parses the named-point-set JSON document:
// a JSON array of [name, color_string] or [name, color_string,
// [x, y, z, uncertainty]] for a point whose model position is already known.
func LoadNamedPointSet(data []byte) (*NamedPointSet, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("points: decode named point set: %w", err)
	}

	s := NewNamedPointSet()
	for i, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("points: named point entry %d must be [name, color, ...]", i)
		}
		var name, colorStr string
		if err := json.Unmarshal(entry[0], &name); err != nil {
			return nil, fmt.Errorf("points: entry %d: decode name: %w", i, err)
		}
		if err := json.Unmarshal(entry[1], &colorStr); err != nil {
			return nil, fmt.Errorf("points: entry %d: decode color: %w", i, err)
		}
		color, err := ParseColor(colorStr)
		if err != nil {
			return nil, fmt.Errorf("points: entry %d: %w", i, err)
		}

		var model *Model
		if len(entry) >= 3 {
			var xyzu [4]float64
			if err := json.Unmarshal(entry[2], &xyzu); err != nil {
				return nil, fmt.Errorf("points: entry %d: decode model position: %w", i, err)
			}
			model = &Model{Position: geom.NewPoint3D(xyzu[0], xyzu[1], xyzu[2]), Uncertainty: xyzu[3]}
		}
		s.AddPoint(name, color, model)
	}
	return s, nil
}

// Save serializes s to the named-point-set JSON document format, in sorted
// name order for deterministic output.
func (s *NamedPointSet) Save() ([]byte, error) {
	raw := make([][]interface{}, 0, len(s.names))
	for _, name := range s.SortedNames() {
		np := s.points[name]
		entry := []interface{}{np.Name, np.Color.String()}
		if np.Model != nil {
			entry = append(entry, [4]float64{np.Model.Position.X, np.Model.Position.Y, np.Model.Position.Z, np.Model.Uncertainty})
		}
		raw = append(raw, entry)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("points: encode named point set: %w", err)
	}
	return data, nil
}
