package propagation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/jblestang/AISpaceTracker/internal/tle"
	"github.com/jblestang/AISpaceTracker/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go (no CGO), battle-tested since 2016, explicit TEME output.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not
// visible to the caller. We detect propagation failures by checking output
// for NaN/Inf and unreasonable position magnitudes.

// ValidityHorizon bounds how far from its epoch an element set is trusted.
// SGP4 accuracy degrades unboundedly beyond about a week, so results
// outside the horizon are rejected outright.
const ValidityHorizon = 7 * 24 * time.Hour

// ErrOutsideValidity is returned when the query time is more than
// ValidityHorizon from the element set epoch.
var ErrOutsideValidity = errors.New("query time outside element validity horizon")

// Position magnitude sanity bounds in km (just above the surface to well
// past GEO).
const (
	minPositionKm = 6200.0
	maxPositionKm = 50000.0
)

// SGP4Propagator wraps the go-satellite model for a single object.
type SGP4Propagator struct {
	sat   satellite.Satellite
	epoch time.Time
	name  string
}

// NewSGP4Propagator constructs the propagation model from an element
// record. Returns an error for degenerate or structurally invalid elements.
//
// Pre-validates the TLE shape before handing it to the library, because
// go-satellite calls log.Fatal on malformed input (which would kill the
// process).
func NewSGP4Propagator(rec tle.ElementRecord) (*SGP4Propagator, error) {
	if err := validateTLELines(rec.Line1, rec.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for %q: %w", rec.Name, err)
	}

	epoch, err := tle.EpochFromLine1(rec.Line1)
	if err != nil {
		return nil, fmt.Errorf("invalid TLE epoch for %q: %w", rec.Name, err)
	}

	sat := satellite.TLEToSat(rec.Line1, rec.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for %q: code=%d %s", rec.Name, sat.Error, sat.ErrorStr)
	}

	return &SGP4Propagator{sat: sat, epoch: epoch, name: rec.Name}, nil
}

// Epoch returns the element set's reference epoch.
func (p *SGP4Propagator) Epoch() time.Time {
	return p.epoch
}

// PositionAt computes the object's inertial-frame (TEME) position in km at
// the given time. Numerical failures inside the model (orbital decay,
// eccentricity singularities) surface as errors, never panics, so one bad
// element set cannot take down a whole update pass.
func (p *SGP4Propagator) PositionAt(t time.Time) (transform.Vec3, error) {
	if d := t.Sub(p.epoch); d > ValidityHorizon || d < -ValidityHorizon {
		return transform.Vec3{}, ErrOutsideValidity
	}

	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	v := transform.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}

	if !v.IsFinite() {
		return transform.Vec3{}, fmt.Errorf("sgp4 propagation failed for %q: output is NaN/Inf", p.name)
	}
	if mag := v.Norm(); mag < minPositionKm || mag > maxPositionKm {
		return transform.Vec3{}, fmt.Errorf("sgp4 propagation failed for %q: unreasonable position magnitude %.1f km", p.name, mag)
	}

	return v, nil
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if !strings.HasPrefix(line1, "1 ") {
		return fmt.Errorf("line1 must start with %q", "1 ")
	}
	if !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("line2 must start with %q", "2 ")
	}
	return nil
}
