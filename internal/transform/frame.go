// Package transform provides coordinate frame conversions between the
// inertial frame produced by orbital propagation and the scene frame
// consumed by the rendering layer.
//
// Inertial (TEME): X toward the vernal equinox, Z toward the north pole,
// Y completing the right-handed set. Scene: Y-up right-handed with the
// prime meridian (the texture's 0° reference) on the +Z axis. The solar
// ephemeris is written against the same convention, so the sub-solar
// meridian at 12:00 UTC lands on scene +Z.
package transform

// EarthRadiusKm is the mean radius of the central body in kilometres.
const EarthRadiusKm = 6371.0

// PrimeMeridianAxis is the scene-frame direction of the 0° meridian.
// Anything that maps longitudes into the scene must agree with it.
var PrimeMeridianAxis = Vec3{Z: 1}

// InertialToScene maps an inertial-frame position into scene coordinates:
// the inertial polar axis becomes the scene's up axis and one equatorial
// axis is negated to preserve handedness. This is the only place the frame
// mapping is encoded.
func InertialToScene(p Vec3) Vec3 {
	return Vec3{X: p.X, Y: p.Z, Z: -p.Y}
}
