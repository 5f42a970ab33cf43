package sim

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jblestang/AISpaceTracker/internal/ephemeris"
	"github.com/jblestang/AISpaceTracker/internal/metrics"
	"github.com/jblestang/AISpaceTracker/internal/propagation"
	"github.com/jblestang/AISpaceTracker/internal/tle"
	"github.com/jblestang/AISpaceTracker/internal/transform"
	"github.com/jblestang/AISpaceTracker/internal/visibility"
)

// ObjectFrame is one object's per-tick output consumed by the rendering
// layer.
type ObjectFrame struct {
	Name     string         `json:"name"`
	NoradID  int            `json:"norad_id"`
	Position transform.Vec3 `json:"position"` // scene frame, km
	Visible  bool           `json:"visible"`
	State    string         `json:"state"`
}

// FrameState is everything the rendering layer needs for one tick.
// Immutable once published.
type FrameState struct {
	Time       time.Time        `json:"time"`
	Sun        transform.Vec3   `json:"sun"`
	Terminator []transform.Vec3 `json:"terminator"`
	Objects    []ObjectFrame    `json:"objects"`
	ValidCount int              `json:"valid_count"`
	StaleCount int              `json:"stale_count"`
}

// Object returns the frame's entry for the named object, if present.
// Objects that have never propagated successfully have no entry.
func (f *FrameState) Object(name string) (ObjectFrame, bool) {
	for _, o := range f.Objects {
		if o.Name == name {
			return o, true
		}
	}
	return ObjectFrame{}, false
}

// Config holds engine configuration.
type Config struct {
	BodyCenter           transform.Vec3 // body center in scene coordinates (zero: origin)
	BodyRadiusKm         float64
	TerminatorResolution int
	Workers              int
	Viewer               transform.Vec3 // initial viewer position, scene km
}

// DefaultViewer matches the rendering layer's starting camera.
var DefaultViewer = transform.Vec3{Z: 15000}

// Engine owns the tracked population and produces one FrameState per tick.
// All per-object work is independent, so a single tick fans out across the
// worker pool; nothing else in the hot path blocks.
type Engine struct {
	mu      sync.RWMutex // guards objects against refresh swaps
	objects []*propagation.TrackedObject

	pool   *propagation.WorkerPool
	clock  *Clock
	config Config
	logger *slog.Logger

	viewer atomic.Pointer[transform.Vec3]
	latest atomic.Pointer[FrameState]
}

// NewEngine creates an engine over the given population.
func NewEngine(objects []*propagation.TrackedObject, clock *Clock, config Config, logger *slog.Logger) *Engine {
	if config.BodyRadiusKm <= 0 {
		config.BodyRadiusKm = transform.EarthRadiusKm
	}
	if config.TerminatorResolution <= 0 {
		config.TerminatorResolution = 128
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if (config.Viewer == transform.Vec3{}) {
		config.Viewer = DefaultViewer
	}

	e := &Engine{
		objects: objects,
		pool:    propagation.NewWorkerPool(config.Workers, logger),
		clock:   clock,
		config:  config,
		logger:  logger,
	}
	v := config.Viewer
	e.viewer.Store(&v)
	return e
}

// BuildObjects constructs tracked objects from a catalog in deterministic
// (name) order, skipping records whose elements cannot initialize the
// propagation model. maxObjects <= 0 means no limit.
func BuildObjects(catalog *tle.Catalog, maxObjects int, logger *slog.Logger) []*propagation.TrackedObject {
	if catalog == nil {
		return nil
	}

	names := make([]string, 0, len(catalog.Records))
	for name := range catalog.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	if maxObjects > 0 && len(names) > maxObjects {
		names = names[:maxObjects]
	}

	objects := make([]*propagation.TrackedObject, 0, len(names))
	var skipped int
	for _, name := range names {
		obj, err := propagation.NewTrackedObject(catalog.Records[name])
		if err != nil {
			logger.Warn("skipping object with degenerate elements", "name", name, "error", err)
			skipped++
			continue
		}
		objects = append(objects, obj)
	}

	logger.Info("tracked population built", "count", len(objects), "skipped", skipped)
	return objects
}

// SetViewer updates the viewer position used for occlusion decisions.
func (e *Engine) SetViewer(v transform.Vec3) {
	e.viewer.Store(&v)
}

// Viewer returns the current viewer position.
func (e *Engine) Viewer() transform.Vec3 {
	return *e.viewer.Load()
}

// Clock returns the engine's simulation clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// ReplaceObjects swaps in a new tracked population (after a catalog
// refresh). In-flight ticks complete against the old population.
func (e *Engine) ReplaceObjects(objects []*propagation.TrackedObject) {
	e.mu.Lock()
	e.objects = objects
	e.mu.Unlock()
}

// ObjectCount returns the current population size.
func (e *Engine) ObjectCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.objects)
}

// FindObject returns the tracked object with the given name, or nil. Only
// the object's immutable identity (Name, NoradID, Epoch, Subpoint) may be
// read from the returned pointer: State and Position are overwritten by the
// worker pool on every tick and must be read from the published FrameState.
func (e *Engine) FindObject(name string) *propagation.TrackedObject {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, o := range e.objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Tick runs one synchronous simulation pass at the clock's current instant
// and publishes the resulting frame. Objects that have never propagated
// successfully are excluded from the frame; stale objects appear at their
// last valid position.
func (e *Engine) Tick(ctx context.Context) *FrameState {
	now := e.clock.Now()
	viewer := e.Viewer()
	start := time.Now()

	e.mu.RLock()
	objects := e.objects
	e.mu.RUnlock()

	result := e.pool.UpdateBatch(ctx, objects, now)

	sun := ephemeris.SunDirection(now)
	terminator := ephemeris.TerminatorCircle(e.config.BodyRadiusKm, sun, e.config.TerminatorResolution)

	frames := make([]ObjectFrame, 0, len(objects))
	for _, o := range objects {
		if o.State == propagation.StateUninitialized {
			continue
		}
		frames = append(frames, ObjectFrame{
			Name:     o.Name,
			NoradID:  o.NoradID,
			Position: o.Position,
			Visible:  !visibility.Occluded(viewer, o.Position, e.config.BodyCenter, e.config.BodyRadiusKm),
			State:    o.State.String(),
		})
	}

	fs := &FrameState{
		Time:       now,
		Sun:        sun,
		Terminator: terminator,
		Objects:    frames,
		ValidCount: result.Valid,
		StaleCount: result.Stale,
	}
	e.latest.Store(fs)

	duration := time.Since(start)
	metrics.RecordTick(duration, result.Valid, result.Stale)
	e.logger.Debug("tick complete",
		"sim_time", now.Format(time.RFC3339),
		"valid", result.Valid,
		"stale", result.Stale,
		"uninitialized", result.Uninitialized,
		"duration_ms", duration.Milliseconds(),
	)

	return fs
}

// Latest returns the most recently published frame, or nil before the
// first tick.
func (e *Engine) Latest() *FrameState {
	return e.latest.Load()
}

// Run ticks the engine at the given interval until ctx is cancelled,
// passing each frame to onFrame (which may be nil).
func (e *Engine) Run(ctx context.Context, interval time.Duration, onFrame func(*FrameState)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First frame immediately rather than one interval in.
	frame := e.Tick(ctx)
	if onFrame != nil {
		onFrame(frame)
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("simulation loop stopped")
			return
		case <-ticker.C:
			frame := e.Tick(ctx)
			if onFrame != nil {
				onFrame(frame)
			}
		}
	}
}
