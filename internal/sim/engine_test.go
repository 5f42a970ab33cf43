package sim

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jblestang/AISpaceTracker/internal/propagation"
	"github.com/jblestang/AISpaceTracker/internal/tle"
	"github.com/jblestang/AISpaceTracker/internal/transform"
	"github.com/jblestang/AISpaceTracker/internal/visibility"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"

	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

var testEpoch = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

func testCatalog() *tle.Catalog {
	return &tle.Catalog{
		Source:    "test",
		FetchedAt: testEpoch,
		Records: map[string]tle.ElementRecord{
			"ISS (ZARYA)":   {Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2},
			"STARLINK-1007": {Name: "STARLINK-1007", Line1: starlinkLine1, Line2: starlinkLine2},
		},
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	objects := BuildObjects(testCatalog(), 0, testLogger)
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objects))
	}
	wallNow, _ := fakeWall(time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC))
	clock := newClockAt(testEpoch, 1.0, wallNow)
	return NewEngine(objects, clock, Config{Workers: 2, TerminatorResolution: 16}, testLogger)
}

// TestBuildObjectsSkipsBadRecords verifies degenerate records are dropped
// while the rest of the catalog still builds.
func TestBuildObjectsSkipsBadRecords(t *testing.T) {
	catalog := testCatalog()
	catalog.Records["BROKEN"] = tle.ElementRecord{Name: "BROKEN", Line1: "garbage", Line2: "garbage"}

	objects := BuildObjects(catalog, 0, testLogger)
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects after skipping broken record, got %d", len(objects))
	}
}

// TestBuildObjectsMaxObjects verifies the population cap applies in
// deterministic name order.
func TestBuildObjectsMaxObjects(t *testing.T) {
	objects := BuildObjects(testCatalog(), 1, testLogger)
	if len(objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objects))
	}
	// "ISS (ZARYA)" sorts before "STARLINK-1007".
	if objects[0].Name != "ISS (ZARYA)" {
		t.Errorf("expected ISS first, got %q", objects[0].Name)
	}
}

// TestBuildObjectsNilCatalog verifies a nil catalog yields an empty
// population.
func TestBuildObjectsNilCatalog(t *testing.T) {
	if objects := BuildObjects(nil, 0, testLogger); len(objects) != 0 {
		t.Errorf("expected empty population, got %d", len(objects))
	}
}

// TestTickPublishesFrame verifies one tick produces a complete frame:
// objects with positions, a unit sun vector, a closed terminator, and
// correct counts.
func TestTickPublishesFrame(t *testing.T) {
	engine := testEngine(t)

	if engine.Latest() != nil {
		t.Fatal("expected no frame before first tick")
	}

	frame := engine.Tick(context.Background())
	if frame == nil {
		t.Fatal("nil frame from tick")
	}
	if engine.Latest() != frame {
		t.Error("Latest should return the just-published frame")
	}

	if !frame.Time.Equal(testEpoch) {
		t.Errorf("frame time: got %v, want %v", frame.Time, testEpoch)
	}
	if frame.ValidCount != 2 || frame.StaleCount != 0 {
		t.Errorf("counts: valid=%d stale=%d, want 2, 0", frame.ValidCount, frame.StaleCount)
	}
	if len(frame.Objects) != 2 {
		t.Fatalf("expected 2 object frames, got %d", len(frame.Objects))
	}
	for _, o := range frame.Objects {
		if o.State != "valid" {
			t.Errorf("object %s state %q, want valid", o.Name, o.State)
		}
		if o.Position == (transform.Vec3{}) {
			t.Errorf("object %s has zero position", o.Name)
		}
	}

	if len(frame.Terminator) != 17 {
		t.Errorf("terminator points: got %d, want 17", len(frame.Terminator))
	}
	if frame.Terminator[0] != frame.Terminator[len(frame.Terminator)-1] {
		t.Error("terminator not closed")
	}
}

// TestTickExcludesUninitialized verifies objects that have never propagated
// do not appear in the frame.
func TestTickExcludesUninitialized(t *testing.T) {
	objects := BuildObjects(testCatalog(), 0, testLogger)
	// Clock pinned far outside the validity window: every propagation fails.
	wallNow, _ := fakeWall(time.Now())
	clock := newClockAt(testEpoch.Add(90*24*time.Hour), 1.0, wallNow)
	engine := NewEngine(objects, clock, Config{Workers: 2}, testLogger)

	frame := engine.Tick(context.Background())
	if len(frame.Objects) != 0 {
		t.Errorf("expected no object frames, got %d", len(frame.Objects))
	}
	if frame.ValidCount != 0 {
		t.Errorf("valid count: got %d, want 0", frame.ValidCount)
	}
}

// TestReplaceObjects verifies a population swap takes effect on the next
// tick.
func TestReplaceObjects(t *testing.T) {
	engine := testEngine(t)
	engine.Tick(context.Background())

	smaller := BuildObjects(&tle.Catalog{Records: map[string]tle.ElementRecord{
		"ISS (ZARYA)": {Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2},
	}}, 0, testLogger)
	engine.ReplaceObjects(smaller)

	if engine.ObjectCount() != 1 {
		t.Fatalf("object count after swap: got %d, want 1", engine.ObjectCount())
	}
	frame := engine.Tick(context.Background())
	if len(frame.Objects) != 1 {
		t.Errorf("expected 1 object frame after swap, got %d", len(frame.Objects))
	}
}

// TestFindObject verifies lookup by catalog name.
func TestFindObject(t *testing.T) {
	engine := testEngine(t)
	if obj := engine.FindObject("ISS (ZARYA)"); obj == nil || obj.NoradID != 25544 {
		t.Errorf("FindObject(ISS) = %v", obj)
	}
	if obj := engine.FindObject("NO SUCH OBJECT"); obj != nil {
		t.Errorf("expected nil for unknown name, got %v", obj)
	}
}

// TestTickVisibilityMatchesOcclusion verifies each frame's visibility flag
// agrees with the occlusion test at the engine's current viewer, from both
// sides of the body.
func TestTickVisibilityMatchesOcclusion(t *testing.T) {
	engine := testEngine(t)

	for _, viewer := range []transform.Vec3{{Z: 15000}, {Z: -15000}} {
		engine.SetViewer(viewer)
		frame := engine.Tick(context.Background())
		for _, o := range frame.Objects {
			want := !visibility.Occluded(viewer, o.Position, transform.Vec3{}, transform.EarthRadiusKm)
			if o.Visible != want {
				t.Errorf("viewer %v object %s: visible=%v, want %v", viewer, o.Name, o.Visible, want)
			}
		}
	}
}

// TestTickUsesConfiguredBodyCenter verifies occlusion decisions follow the
// configured body center rather than assuming the origin.
func TestTickUsesConfiguredBodyCenter(t *testing.T) {
	center := transform.Vec3{X: 50000}
	objects := BuildObjects(testCatalog(), 0, testLogger)
	wallNow, _ := fakeWall(time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC))
	clock := newClockAt(testEpoch, 1.0, wallNow)
	engine := NewEngine(objects, clock, Config{Workers: 2, BodyCenter: center}, testLogger)

	frame := engine.Tick(context.Background())
	viewer := engine.Viewer()
	for _, o := range frame.Objects {
		want := !visibility.Occluded(viewer, o.Position, center, transform.EarthRadiusKm)
		if o.Visible != want {
			t.Errorf("object %s: visible=%v, want %v for offset body center", o.Name, o.Visible, want)
		}
	}
}

// TestFrameObjectLookup verifies the published frame resolves entries by
// name and omits objects that never propagated.
func TestFrameObjectLookup(t *testing.T) {
	engine := testEngine(t)
	frame := engine.Tick(context.Background())

	of, ok := frame.Object("ISS (ZARYA)")
	if !ok {
		t.Fatal("expected a frame entry for ISS")
	}
	if of.NoradID != 25544 || of.State != "valid" {
		t.Errorf("entry: %+v", of)
	}
	if _, ok := frame.Object("NO SUCH OBJECT"); ok {
		t.Error("unknown name should have no frame entry")
	}
}

// TestRunStopsOnCancel verifies the tick loop exits when the context is
// cancelled and delivers at least the immediate first frame.
func TestRunStopsOnCancel(t *testing.T) {
	engine := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	frames := make(chan *FrameState, 16)
	done := make(chan struct{})
	go func() {
		engine.Run(ctx, 50*time.Millisecond, func(f *FrameState) {
			select {
			case frames <- f:
			default:
			}
		})
		close(done)
	}()

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

// TestEngineStaleCount verifies the frame tallies stale objects after a
// window excursion.
func TestEngineStaleCount(t *testing.T) {
	objects := BuildObjects(testCatalog(), 0, testLogger)
	pool := propagation.NewWorkerPool(2, testLogger)
	pool.UpdateBatch(context.Background(), objects, testEpoch)

	wallNow, _ := fakeWall(time.Now())
	clock := newClockAt(testEpoch.Add(90*24*time.Hour), 1.0, wallNow)
	engine := NewEngine(objects, clock, Config{Workers: 2}, testLogger)

	frame := engine.Tick(context.Background())
	if frame.StaleCount != 2 || frame.ValidCount != 0 {
		t.Errorf("counts after excursion: valid=%d stale=%d, want 0, 2", frame.ValidCount, frame.StaleCount)
	}
	// Stale objects still appear at their last valid position.
	if len(frame.Objects) != 2 {
		t.Errorf("expected 2 stale object frames, got %d", len(frame.Objects))
	}
	for _, o := range frame.Objects {
		if o.State != "stale" {
			t.Errorf("object %s state %q, want stale", o.Name, o.State)
		}
	}
}
