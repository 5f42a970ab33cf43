package ephemeris

import (
	"math"
	"testing"

	"github.com/jblestang/AISpaceTracker/internal/transform"
)

// TestTerminatorCircleGeometry verifies every sample lies on the sphere and
// in the plane perpendicular to the sun direction.
func TestTerminatorCircleGeometry(t *testing.T) {
	radius := 6371.0
	sunDir := transform.Vec3{X: 0.5, Y: 0.3, Z: 0.8}.Normalize()

	points := TerminatorCircle(radius, sunDir, 64)
	if len(points) != 65 {
		t.Fatalf("expected 65 points, got %d", len(points))
	}

	for i, p := range points {
		if d := math.Abs(p.Norm() - radius); d > 1e-6 {
			t.Errorf("point %d off the sphere by %g km", i, d)
		}
		if d := math.Abs(p.Dot(sunDir)); d > 1e-6 {
			t.Errorf("point %d out of the terminator plane by %g", i, d)
		}
	}
}

// TestTerminatorCircleClosed verifies the polyline closes exactly: the last
// point equals the first.
func TestTerminatorCircleClosed(t *testing.T) {
	points := TerminatorCircle(6371.0, transform.Vec3{Z: 1}, 128)
	if points[0] != points[len(points)-1] {
		t.Errorf("loop not closed: first %v, last %v", points[0], points[len(points)-1])
	}
}

// TestTerminatorCircleDegenerateBasis verifies the basis stays
// well-conditioned when the sun direction is (anti)parallel to the default
// reference axis.
func TestTerminatorCircleDegenerateBasis(t *testing.T) {
	for _, sunDir := range []transform.Vec3{{Y: 1}, {Y: -1}, {Y: 0.95, X: 0.05}} {
		sunDir = sunDir.Normalize()
		points := TerminatorCircle(1000.0, sunDir, 16)
		for i, p := range points {
			if !p.IsFinite() {
				t.Fatalf("sunDir %v: point %d is not finite", sunDir, i)
			}
			if d := math.Abs(p.Norm() - 1000.0); d > 1e-6 {
				t.Errorf("sunDir %v: point %d off the sphere by %g", sunDir, i, d)
			}
		}
	}
}

// TestTerminatorCircleMinimumResolution verifies resolutions below three are
// clamped rather than producing a degenerate polyline.
func TestTerminatorCircleMinimumResolution(t *testing.T) {
	points := TerminatorCircle(100.0, transform.Vec3{Z: 1}, 0)
	if len(points) != 4 {
		t.Errorf("expected 4 points at clamped resolution, got %d", len(points))
	}
}

// TestTerminatorCircleAdjacentSpacing verifies samples are evenly spaced
// around the circle.
func TestTerminatorCircleAdjacentSpacing(t *testing.T) {
	points := TerminatorCircle(6371.0, transform.Vec3{X: 1}, 32)
	want := points[1].Sub(points[0]).Norm()
	for i := 1; i < len(points)-1; i++ {
		got := points[i+1].Sub(points[i]).Norm()
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("segment %d length %.9f, want %.9f", i, got, want)
		}
	}
}
