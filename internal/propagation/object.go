package propagation

import (
	"time"

	"github.com/jblestang/AISpaceTracker/internal/tle"
	"github.com/jblestang/AISpaceTracker/internal/transform"
)

// ObjectState tracks the outcome of an object's most recent propagation.
type ObjectState int

const (
	// StateUninitialized means no propagation has succeeded yet; the
	// object has no position.
	StateUninitialized ObjectState = iota
	// StateValid means the most recent propagation succeeded within the
	// validity window.
	StateValid
	// StateStale means the most recent propagation failed or fell outside
	// the validity window; the object keeps its last valid position.
	StateStale
)

func (s ObjectState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateStale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// TrackedObject is one catalog entry followed across simulation ticks.
// Objects are never destroyed during a session: when propagation fails they
// simply stop updating, retaining the last valid position.
//
// Not safe for concurrent mutation; the worker pool addresses objects by
// index so no two goroutines ever update the same one.
type TrackedObject struct {
	Name    string
	NoradID int

	// State and Position form the update contract: Position is only ever
	// overwritten by a successful propagation.
	State    ObjectState
	Position transform.Vec3 // scene frame, km; meaningless while Uninitialized

	prop *SGP4Propagator
}

// NewTrackedObject builds a tracked object from an element record. Records
// whose elements cannot initialize the propagation model are rejected here,
// before they ever join the population.
func NewTrackedObject(rec tle.ElementRecord) (*TrackedObject, error) {
	prop, err := NewSGP4Propagator(rec)
	if err != nil {
		return nil, err
	}
	noradID, err := tle.CatalogNumber(rec.Line1)
	if err != nil {
		return nil, err
	}
	return &TrackedObject{Name: rec.Name, NoradID: noradID, prop: prop}, nil
}

// Epoch returns the reference epoch of the object's element set.
func (o *TrackedObject) Epoch() time.Time {
	return o.prop.Epoch()
}

// Update propagates the object to t and applies the result. On success the
// scene-frame position is overwritten and the object becomes Valid. On
// failure the previous position is left untouched: a previously Valid
// object becomes Stale, a never-valid object stays Uninitialized.
func (o *TrackedObject) Update(t time.Time) error {
	inertial, err := o.prop.PositionAt(t)
	if err != nil {
		if o.State == StateValid {
			o.State = StateStale
		}
		return err
	}

	o.Position = transform.InertialToScene(inertial)
	o.State = StateValid
	return nil
}

// Subpoint returns the geodetic point currently below the object, derived
// from its inertial position at t. Only meaningful for Valid objects.
func (o *TrackedObject) Subpoint(t time.Time) (transform.Geodetic, error) {
	inertial, err := o.prop.PositionAt(t)
	if err != nil {
		return transform.Geodetic{}, err
	}
	return transform.Subpoint(transform.InertialToECEF(inertial, t)), nil
}
