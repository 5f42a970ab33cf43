package transform

import (
	"math"
	"time"
)

// Geodetic is a ground subpoint on a spherical body of radius EarthRadiusKm.
// Good to a fraction of a degree against the WGS-84 ellipsoid, which is
// plenty for catalog display.
type Geodetic struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltKm  float64 `json:"alt_km"`
}

// InertialToECEF rotates an inertial (TEME) position into the Earth-fixed
// frame at the given UTC time.
//
// Method: simplified Vallado-style rotation using GMST only (TEME → PEF ≈
// ECEF). Polar motion and the equation of the equinoxes are ignored, which
// introduces ~50 m of error at most.
func InertialToECEF(p Vec3, t time.Time) Vec3 {
	return InertialToECEFWithGMST(p, GMST(t))
}

// InertialToECEFWithGMST rotates using a precomputed GMST angle (radians).
// Useful when many objects are transformed to the same instant.
func InertialToECEFWithGMST(p Vec3, gmst float64) Vec3 {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return Vec3{
		X: p.X*cosG + p.Y*sinG,
		Y: -p.X*sinG + p.Y*cosG,
		Z: p.Z,
	}
}

// Subpoint returns the geodetic point directly below an ECEF position.
func Subpoint(ecef Vec3) Geodetic {
	r := ecef.Norm()
	if r == 0 {
		return Geodetic{AltKm: -EarthRadiusKm}
	}
	return Geodetic{
		LatDeg: math.Asin(ecef.Z/r) * 180.0 / math.Pi,
		LonDeg: math.Atan2(ecef.Y, ecef.X) * 180.0 / math.Pi,
		AltKm:  r - EarthRadiusKm,
	}
}
