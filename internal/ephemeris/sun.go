// Package ephemeris derives solar geometry from calendar time: the
// instantaneous sun direction in scene coordinates and the day/night
// terminator on the central body.
package ephemeris

import (
	"math"
	"time"

	"github.com/jblestang/AISpaceTracker/internal/transform"
)

// AxialTiltDeg is the central body's axial tilt in degrees.
const AxialTiltDeg = 23.44

const deg2rad = math.Pi / 180.0

// Declination returns the sun's declination in radians at t: the seasonal
// angle between the sun and the equatorial plane.
//
//	declination = tilt · sin(2π·(284 + day_of_year)/365)
func Declination(t time.Time) float64 {
	doy := float64(t.UTC().YearDay())
	return AxialTiltDeg * deg2rad * math.Sin(2*math.Pi*(284+doy)/365)
}

// HourAngle returns the solar hour angle in radians at t: 15° per hour
// from solar noon, zero at 12:00 UTC.
func HourAngle(t time.Time) float64 {
	t = t.UTC()
	hours := float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0
	return (hours - 12.0) * 15.0 * deg2rad
}

// SunDirection returns the unit vector from the body center toward the sun
// in scene coordinates.
//
// At 12:00 UTC the hour angle is zero and the sun sits over the scene
// prime meridian (transform.PrimeMeridianAxis, +Z); a positive hour angle
// moves it west. Declination tilts it toward the scene's up axis.
func SunDirection(t time.Time) transform.Vec3 {
	decl := Declination(t)
	ha := HourAngle(t)

	v := transform.Vec3{
		X: math.Cos(decl) * math.Sin(ha),
		Y: math.Sin(decl),
		Z: math.Cos(decl) * math.Cos(ha),
	}
	return v.Normalize()
}
