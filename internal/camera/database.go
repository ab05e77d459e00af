package camera

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meridian-optics/photocal/internal/camerabody"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/lens"
)

// ErrUnknownBody and ErrUnknownLens are returned when a camera instance
// description references a body or lens name the database does not carry.
var (
	ErrUnknownBody = errors.New("camera: unknown body")
	ErrUnknownLens = errors.New("camera: unknown lens")
)

// bodyJSON and lensJSON mirror the camera database's JSON schema:
// bodies as {name, aliases[], px_centre[2], px_width,
// px_height, flip_y, mm_sensor_width, mm_sensor_height}, lenses as
// {name, mm_focal_length, wts_poly[], stw_poly[]} (world-to-sensor and
// sensor-to-world polynomial coefficients, low-to-high degree).
type bodyJSON struct {
	Name           string    `json:"name"`
	Aliases        []string  `json:"aliases"`
	PxCentre       [2]float64 `json:"px_centre"`
	PxWidth        float64   `json:"px_width"`
	PxHeight       float64   `json:"px_height"`
	FlipY          bool      `json:"flip_y"`
	MMSensorWidth  float64   `json:"mm_sensor_width"`
	MMSensorHeight float64   `json:"mm_sensor_height"`
}

type lensJSON struct {
	Name          string    `json:"name"`
	MMFocalLength float64   `json:"mm_focal_length"`
	WtsPoly       []float64 `json:"wts_poly"`
	StwPoly       []float64 `json:"stw_poly"`
}

type databaseJSON struct {
	Bodies []bodyJSON `json:"bodies"`
	Lenses []lensJSON `json:"lenses"`
}

// Database is an in-memory set of named camera bodies and lenses, loaded
// from or saved to a two-array {bodies, lenses} JSON document.
type Database struct {
	Bodies map[string]camerabody.Body
	Lenses map[string]lens.CameraLens
}

// NewDatabase returns an empty Database.
func NewDatabase() *Database {
	return &Database{Bodies: map[string]camerabody.Body{}, Lenses: map[string]lens.CameraLens{}}
}

// LoadDatabase parses a camera database JSON document.
func LoadDatabase(data []byte) (*Database, error) {
	var doc databaseJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("camera: decode database: %w", err)
	}

	db := NewDatabase()
	for _, b := range doc.Bodies {
		body := camerabody.Body{
			Name:           b.Name,
			Aliases:        b.Aliases,
			PxCentre:       geom.NewPoint2D(b.PxCentre[0], b.PxCentre[1]),
			PxWidth:        b.PxWidth,
			PxHeight:       b.PxHeight,
			FlipY:          b.FlipY,
			MMSensorWidth:  b.MMSensorWidth,
			MMSensorHeight: b.MMSensorHeight,
		}
		body.Derive()
		db.Bodies[b.Name] = body
	}
	for _, l := range doc.Lenses {
		db.Lenses[l.Name] = lens.CameraLens{
			Name:          l.Name,
			FocalLengthMM: l.MMFocalLength,
			Lens: lens.Lens{
				Forward: lens.Polynomial{Coeffs: append([]float64(nil), l.WtsPoly...)},
				Inverse: lens.Polynomial{Coeffs: append([]float64(nil), l.StwPoly...)},
			},
		}
	}
	return db, nil
}

// Save serializes db to the camera database JSON document format.
func (db *Database) Save() ([]byte, error) {
	doc := databaseJSON{}
	for _, b := range db.Bodies {
		doc.Bodies = append(doc.Bodies, bodyJSON{
			Name:           b.Name,
			Aliases:        b.Aliases,
			PxCentre:       [2]float64{b.PxCentre.X, b.PxCentre.Y},
			PxWidth:        b.PxWidth,
			PxHeight:       b.PxHeight,
			FlipY:          b.FlipY,
			MMSensorWidth:  b.MMSensorWidth,
			MMSensorHeight: b.MMSensorHeight,
		})
	}
	for _, l := range db.Lenses {
		doc.Lenses = append(doc.Lenses, lensJSON{
			Name:          l.Name,
			MMFocalLength: l.FocalLengthMM,
			WtsPoly:       l.Lens.Forward.Coeffs,
			StwPoly:       l.Lens.Inverse.Coeffs,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("camera: encode database: %w", err)
	}
	return data, nil
}

// GetBody looks up a body by name, resolving aliases too.
func (db *Database) GetBody(name string) (camerabody.Body, error) {
	if b, ok := db.Bodies[name]; ok {
		return b, nil
	}
	for _, b := range db.Bodies {
		if b.HasName(name) {
			return b, nil
		}
	}
	return camerabody.Body{}, fmt.Errorf("%w: %q", ErrUnknownBody, name)
}

// GetLens looks up a lens by name.
func (db *Database) GetLens(name string) (lens.CameraLens, error) {
	if l, ok := db.Lenses[name]; ok {
		return l, nil
	}
	return lens.CameraLens{}, fmt.Errorf("%w: %q", ErrUnknownLens, name)
}

// InstanceDesc is a camera instance description referencing a database by
// body/lens name, the serializable counterpart of Instance.
type InstanceDesc struct {
	Body            string       `json:"body"`
	Lens            string       `json:"lens"`
	FocusDistanceMM float64      `json:"mm_focus_distance"`
	Position        geom.Point3D `json:"position"`
	Orientation     geom.Quat    `json:"orientation"`
}

// FromDesc resolves desc's body/lens names against db and constructs the
// full Instance.
func (db *Database) FromDesc(desc InstanceDesc) (*Instance, error) {
	body, err := db.GetBody(desc.Body)
	if err != nil {
		return nil, err
	}
	l, err := db.GetLens(desc.Lens)
	if err != nil {
		return nil, err
	}
	return New(body, l, desc.FocusDistanceMM, desc.Position, desc.Orientation), nil
}

// ToDesc returns the name-referencing description of c.
func (c *Instance) ToDesc() InstanceDesc {
	return InstanceDesc{
		Body:            c.Body.Name,
		Lens:            c.Lens.Name,
		FocusDistanceMM: c.FocusDistanceMM,
		Position:        c.Position,
		Orientation:     c.Orientation,
	}
}
