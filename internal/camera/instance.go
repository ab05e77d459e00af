// Package camera composes a sensor body and a lens into a full camera
// instance: position, orientation and focus distance, with the complete
// world<->sensor projection pipeline.
package camera

import (
	"github.com/meridian-optics/photocal/internal/camerabody"
	"github.com/meridian-optics/photocal/internal/geom"
	"github.com/meridian-optics/photocal/internal/lens"
)

// Instance is a fully-posed camera: a sensor body, a calibrated lens, the
// distance the lens is focused at, and the camera's position/orientation
// in world space. Orientation rotates camera-relative world coordinates
// into camera space (world_xyz_to_camera_xyz applies it directly; the
// inverse direction applies its conjugate).
type Instance struct {
	Body            camerabody.Body
	Lens            lens.CameraLens
	FocusDistanceMM float64
	Position        geom.Point3D
	Orientation     geom.Quat

	// Derived by Derive().
	magnification float64
	xPxFromTanSc  float64
	yPxFromTanSc  float64
}

// New builds an Instance and derives its scale factors.
func New(body camerabody.Body, l lens.CameraLens, focusDistanceMM float64, position geom.Point3D, orientation geom.Quat) *Instance {
	c := &Instance{Body: body, Lens: l, FocusDistanceMM: focusDistanceMM, Position: position, Orientation: orientation}
	c.Derive()
	return c
}

// Derive recomputes the focus magnification and the tan(angle)->pixel
// scale factors sx, sy from FocusDistanceMM, the lens focal length and the
// body's mm-per-pixel. Callers that mutate FocusDistanceMM directly must
// call Derive afterward; SetFocusDistance does this automatically.
//
// m = d/(d-f): the lens is calibrated at infinity (d huge, m ~ 1); at focus
// distance d the image is magnified by d/(d-f) on the sensor.
func (c *Instance) Derive() {
	f := c.Lens.FocalLengthMM
	c.magnification = c.FocusDistanceMM / (c.FocusDistanceMM - f)
	scale := f * c.magnification
	c.xPxFromTanSc = scale / c.Body.MMSinglePixelWidth
	c.yPxFromTanSc = scale / c.Body.MMSinglePixelHeight
}

// Magnification returns the derived focus magnification m = d/(d-f).
func (c *Instance) Magnification() float64 { return c.magnification }

// SetFocusDistance updates the focus distance and re-derives scale factors.
func (c *Instance) SetFocusDistance(mmFocusDistance float64) {
	c.FocusDistanceMM = mmFocusDistance
	c.Derive()
}

// WorldToCameraXYZ converts a world-space point to camera-space XYZ:
// orientation applied to the camera-relative world position.
func (c *Instance) WorldToCameraXYZ(worldXYZ geom.Point3D) geom.Point3D {
	rel := worldXYZ.Sub(c.Position)
	return c.Orientation.Apply(rel)
}

// CameraToWorldXYZ converts a camera-space point back to world space.
func (c *Instance) CameraToWorldXYZ(cameraXYZ geom.Point3D) geom.Point3D {
	rel := c.Orientation.Conjugate().Apply(cameraXYZ)
	return rel.Add(c.Position)
}

// CameraToWorldDir converts a camera-space direction to a world-space
// direction, without translating by Position.
func (c *Instance) CameraToWorldDir(cameraXYZ geom.Point3D) geom.Point3D {
	return c.Orientation.Conjugate().Apply(cameraXYZ)
}

// sensorTxtyToPxAbsXY scales a sensor-space TanXTanY by the derived
// pixel-per-tan factors and shifts to absolute pixel coordinates.
func (c *Instance) sensorTxtyToPxAbsXY(txty geom.TanXTanY) geom.Point2D {
	rel := geom.NewPoint2D(txty.TX*c.xPxFromTanSc, txty.TY*c.yPxFromTanSc)
	return c.Body.RelToAbs(rel)
}

// pxAbsXYToSensorTxty is the inverse of sensorTxtyToPxAbsXY.
func (c *Instance) pxAbsXYToSensorTxty(pxAbsXY geom.Point2D) geom.TanXTanY {
	rel := c.Body.AbsToRel(pxAbsXY)
	return geom.TanXTanY{TX: rel.X / c.xPxFromTanSc, TY: rel.Y / c.yPxFromTanSc}
}

// PxAbsXYToSensorTxty maps an absolute sensor pixel to its sensor-space
// TanXTanY without applying the lens's distortion polynomial: the angle a
// pure pinhole (rectilinear) lens of the same focal length and sensor scale
// would imply for that pixel. Used by lens calibration to derive
// sensor_yaw samples independent of the (not yet fitted) lens map.
func (c *Instance) PxAbsXYToSensorTxty(pxAbsXY geom.Point2D) geom.TanXTanY {
	return c.pxAbsXYToSensorTxty(pxAbsXY)
}

// CameraTxtyToSensorTxty applies the lens forward map (world->sensor yaw),
// preserving roll.
func (c *Instance) CameraTxtyToSensorTxty(cameraTxty geom.TanXTanY) geom.TanXTanY {
	cameraRy := cameraTxty.RollYaw()
	sensorRy := cameraRy.WithYaw(c.Lens.WorldToSensor(cameraRy.TanYaw))
	return sensorRy.TanXTanY()
}

// SensorTxtyToCameraTxty applies the lens inverse map (sensor->world yaw).
func (c *Instance) SensorTxtyToCameraTxty(sensorTxty geom.TanXTanY) geom.TanXTanY {
	sensorRy := sensorTxty.RollYaw()
	cameraRy := sensorRy.WithYaw(c.Lens.SensorToWorld(sensorRy.TanYaw))
	return cameraRy.TanXTanY()
}

// CameraTxtyToPxAbsXY maps a camera-space (projected) TanXTanY to an
// absolute sensor pixel, applying the lens then the sensor scale/center.
func (c *Instance) CameraTxtyToPxAbsXY(cameraTxty geom.TanXTanY) geom.Point2D {
	sensorTxty := c.CameraTxtyToSensorTxty(cameraTxty)
	return c.sensorTxtyToPxAbsXY(sensorTxty)
}

// PxAbsXYToCameraTxty maps an absolute sensor pixel back to a camera-space
// (undistorted) TanXTanY.
func (c *Instance) PxAbsXYToCameraTxty(pxAbsXY geom.Point2D) geom.TanXTanY {
	sensorTxty := c.pxAbsXYToSensorTxty(pxAbsXY)
	return c.SensorTxtyToCameraTxty(sensorTxty)
}

// WorldToCameraTxty is world_xyz_to_camera_txty: world point -> camera-space
// XYZ -> TanXTanY, with ok=false only if the point lies in the camera's
// z=0 plane (|z| < 1e-8, see geom.DirectionTanXTanY); points on either side
// of that plane are projected.
func (c *Instance) WorldToCameraTxty(worldXYZ geom.Point3D) (geom.TanXTanY, bool) {
	cameraXYZ := c.WorldToCameraXYZ(worldXYZ)
	return geom.DirectionTanXTanY(cameraXYZ)
}

// WorldToPxAbsXY is the full forward projection: world point -> absolute
// sensor pixel. ok is false if the point cannot be projected (it lies in
// the camera's z=0 plane).
func (c *Instance) WorldToPxAbsXY(worldXYZ geom.Point3D) (geom.Point2D, bool) {
	cameraTxty, ok := c.WorldToCameraTxty(worldXYZ)
	if !ok {
		return geom.Point2D{}, false
	}
	return c.CameraTxtyToPxAbsXY(cameraTxty), true
}

// PxAbsXYToWorldDir is the full inverse projection: absolute sensor pixel
// -> world-space unit direction. The result is a ray through c.Position.
func (c *Instance) PxAbsXYToWorldDir(pxAbsXY geom.Point2D) geom.Point3D {
	cameraTxty := c.PxAbsXYToCameraTxty(pxAbsXY)
	cameraXYZ := cameraTxty.Unit()
	return c.CameraToWorldDir(cameraXYZ)
}
