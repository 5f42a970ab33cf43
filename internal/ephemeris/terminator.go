package ephemeris

import (
	"math"

	"github.com/jblestang/AISpaceTracker/internal/transform"
)

// basisSwitchThreshold is the |dot| above which the default reference axis
// is considered near-parallel to the sun direction and swapped out to keep
// the circle basis well-conditioned.
const basisSwitchThreshold = 0.9

// TerminatorCircle samples the day/night boundary: a closed polyline of
// resolution+1 points lying in the plane through the body center
// perpendicular to sunDir, each at distance radius from the center. The
// last point equals the first.
func TerminatorCircle(radius float64, sunDir transform.Vec3, resolution int) []transform.Vec3 {
	if resolution < 3 {
		resolution = 3
	}

	ref := transform.Vec3{Y: 1}
	if math.Abs(sunDir.Dot(ref)) > basisSwitchThreshold {
		ref = transform.Vec3{X: 1}
	}

	// Orthonormal basis {u, v} spanning the terminator plane.
	u := sunDir.Cross(ref).Normalize()
	v := sunDir.Cross(u).Normalize()

	points := make([]transform.Vec3, 0, resolution+1)
	for i := 0; i < resolution; i++ {
		theta := 2 * math.Pi * float64(i) / float64(resolution)
		p := u.Scale(math.Cos(theta)).Add(v.Scale(math.Sin(theta))).Scale(radius)
		points = append(points, p)
	}
	return append(points, points[0])
}
