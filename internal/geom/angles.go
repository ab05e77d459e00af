package geom

import "math"

// zClamp is the minimum |z| treated as non-zero when converting a TanXTanY
// ray to a unit vector or a camera-space point to a TanXTanY ray. Below this
// the direction is considered to be on (or past) the image plane and the
// conversion is undefined.
const zClamp = 1e-8

// yawClamp is the tan_yaw threshold below which a RollYaw is snapped to the
// canonical on-axis form (cos_roll=1, sin_roll=0, tan_yaw=0).
const yawClamp = 1e-8

// TanXTanY is a ray through the optical center encoded as (tx, ty) such
// that the 3D direction is proportional to (tx, ty, 1).
type TanXTanY struct {
	TX, TY float64
}

// Unit converts the ray to a unit 3D direction vector.
func (t TanXTanY) Unit() Point3D {
	return NewPoint3D(t.TX, t.TY, 1).Normalize()
}

// RollYaw converts a TanXTanY ray to its RollYaw encoding.
func (t TanXTanY) RollYaw() RollYaw {
	tanYaw := math.Hypot(t.TX, t.TY)
	if tanYaw < yawClamp {
		return RollYaw{SinRoll: 0, CosRoll: 1, TanYaw: 0}
	}
	return RollYaw{SinRoll: t.TY / tanYaw, CosRoll: t.TX / tanYaw, TanYaw: tanYaw}
}

// RollYaw is the same ray encoded as (sin_roll, cos_roll, tan_yaw), where
// yaw is the angle from the optical axis and roll is the angle in the image
// plane. Stored redundantly (sin and cos of roll both kept) so that lens
// maps, which operate only on tan_yaw, never need to recompute trig
// functions of roll. Invariant: sin_roll^2 + cos_roll^2 == 1.
type RollYaw struct {
	SinRoll, CosRoll, TanYaw float64
}

// TanXTanY converts the ray back to its TanXTanY encoding.
func (r RollYaw) TanXTanY() TanXTanY {
	return TanXTanY{TX: r.TanYaw * r.CosRoll, TY: r.TanYaw * r.SinRoll}
}

// Unit converts the ray to a unit 3D direction vector by round-tripping
// through TanXTanY.
func (r RollYaw) Unit() Point3D {
	return r.TanXTanY().Unit()
}

// WithYaw returns a copy of r with tan_yaw replaced, roll preserved. This is
// the shape every lens distortion step takes: roll passes through
// untouched, only yaw is remapped.
func (r RollYaw) WithYaw(tanYaw float64) RollYaw {
	return RollYaw{SinRoll: r.SinRoll, CosRoll: r.CosRoll, TanYaw: tanYaw}
}

// DirectionTanXTanY converts a camera-space direction (need not be unit
// length) to its TanXTanY ray, dividing by Z. ok is false if |z| is too
// small for a numerically stable divide.
func DirectionTanXTanY(d Point3D) (t TanXTanY, ok bool) {
	if math.Abs(d.Z) < zClamp {
		return TanXTanY{}, false
	}
	return TanXTanY{TX: d.X / d.Z, TY: d.Y / d.Z}, true
}
