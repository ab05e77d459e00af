// Package camerabody implements the camera sensor coordinate transform:
// absolute pixel coordinates (origin at one corner) versus center-relative
// pixel coordinates (origin at the optical-axis pixel).
package camerabody

import (
	"math"

	"github.com/meridian-optics/photocal/internal/geom"
)

// Body describes a rectangular camera sensor: its pixel dimensions, the
// calibrated optical-axis pixel (which need not be the geometric center),
// the sensor's physical size in mm, and whether absolute pixel Y grows
// downward (flip_y).
type Body struct {
	Name    string
	Aliases []string

	PxCentre geom.Point2D
	PxWidth  float64
	PxHeight float64
	FlipY    bool

	MMSensorWidth  float64
	MMSensorHeight float64

	// Derived fields, recomputed by Derive.
	MMSinglePixelWidth  float64
	MMSinglePixelHeight float64
	PixelAspectRatio    float64
}

// New35mm returns a Body matching a classic 35mm film/full-frame sensor
// (36x24mm) at the given pixel resolution, center pixel at the geometric
// center, with absolute pixel Y flipped (image-coordinate convention).
func New35mm(pxWidth, pxHeight int) Body {
	b := Body{
		Name:           "35mm body",
		PxWidth:        float64(pxWidth),
		PxHeight:       float64(pxHeight),
		PxCentre:       geom.NewPoint2D(float64(pxWidth)/2, float64(pxHeight)/2),
		FlipY:          true,
		MMSensorWidth:  36.0,
		MMSensorHeight: 24.0,
	}
	b.Derive()
	return b
}

// New builds a Body of the given sensor width (mm) and pixel resolution,
// with the height derived assuming square pixels and the center pixel set
// to the geometric center.
func New(mmSensorWidth float64, pxWidth, pxHeight int) Body {
	b := Body{
		Name:          "CameraBody",
		PxWidth:       float64(pxWidth),
		PxHeight:      float64(pxHeight),
		PxCentre:      geom.NewPoint2D(float64(pxWidth)/2, float64(pxHeight)/2),
		MMSensorWidth: mmSensorWidth,
	}
	b.MMSensorHeight = mmSensorWidth / b.PxWidth * b.PxHeight
	b.Derive()
	return b
}

// Derive recomputes the fields derived from pixel and mm dimensions:
// mm-per-pixel in both axes and pixel aspect ratio. Callers that mutate
// PxWidth/PxHeight/MMSensorWidth/MMSensorHeight directly must call Derive
// afterward.
func (b *Body) Derive() {
	b.MMSinglePixelWidth = b.MMSensorWidth / b.PxWidth
	b.MMSinglePixelHeight = b.MMSensorHeight / b.PxHeight
	b.PixelAspectRatio = b.MMSinglePixelWidth / b.MMSinglePixelHeight
}

// HasName reports whether name matches b's name or one of its aliases.
func (b Body) HasName(name string) bool {
	if name == b.Name {
		return true
	}
	for _, a := range b.Aliases {
		if name == a {
			return true
		}
	}
	return false
}

// MMSensorDiagonal returns the sensor's physical diagonal in mm.
func (b Body) MMSensorDiagonal() float64 {
	return math.Hypot(b.MMSensorWidth, b.MMSensorHeight)
}

// AbsToRel converts absolute pixel coordinates (origin at one corner) to
// center-relative pixel coordinates (origin at the optical-axis pixel),
// negating Y if FlipY is set.
func (b Body) AbsToRel(xy geom.Point2D) geom.Point2D {
	rel := xy.Sub(b.PxCentre)
	if b.FlipY {
		return geom.NewPoint2D(rel.X, -rel.Y)
	}
	return rel
}

// RelToAbs converts center-relative pixel coordinates back to absolute
// pixel coordinates.
func (b Body) RelToAbs(xy geom.Point2D) geom.Point2D {
	y := xy.Y
	if b.FlipY {
		y = -y
	}
	return geom.NewPoint2D(xy.X+b.PxCentre.X, y+b.PxCentre.Y)
}
