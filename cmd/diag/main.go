package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jblestang/AISpaceTracker/internal/ephemeris"
	"github.com/jblestang/AISpaceTracker/internal/propagation"
	"github.com/jblestang/AISpaceTracker/internal/tle"
	"github.com/jblestang/AISpaceTracker/internal/transform"
	"github.com/jblestang/AISpaceTracker/internal/visibility"
)

// Offline diagnostic: propagate a handful of cached objects to the current
// time and print their scene positions alongside the sun direction. Needs a
// previously stored snapshot; it never touches the network.
func main() {
	cacheDir := flag.String("cache-dir", "cache", "snapshot cache directory")
	count := flag.Int("count", 5, "number of objects to propagate")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	snap := tle.NewSnapshotCache(*cacheDir, logger).Load(tle.DefaultMaxAge)
	if snap == nil {
		fmt.Fprintf(os.Stderr, "no usable snapshot in %s (missing, corrupt, or older than %v)\n",
			*cacheDir, tle.DefaultMaxAge)
		os.Exit(1)
	}
	fmt.Printf("Snapshot: %d records, downloaded %v\n", len(snap.Records), snap.DownloadedAt.Format(time.RFC3339))

	names := make([]string, 0, len(snap.Records))
	for name := range snap.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > *count {
		names = names[:*count]
	}

	now := time.Now().UTC()
	sunDir := ephemeris.SunDirection(now)
	fmt.Printf("Time: %v\n", now.Format(time.RFC3339))
	fmt.Printf("Sun direction: (%.4f, %.4f, %.4f)\n", sunDir.X, sunDir.Y, sunDir.Z)

	ring := ephemeris.TerminatorCircle(transform.EarthRadiusKm, sunDir, 8)
	fmt.Printf("Terminator sample (first of %d points): (%.1f, %.1f, %.1f)\n",
		len(ring), ring[0].X, ring[0].Y, ring[0].Z)

	viewer := transform.Vec3{Z: 15000}
	for _, name := range names {
		obj, err := propagation.NewTrackedObject(snap.Records[name])
		if err != nil {
			fmt.Printf("  %s: ERROR %v\n", name, err)
			continue
		}
		if err := obj.Update(now); err != nil {
			fmt.Printf("  %s (NORAD %d): ERROR %v\n", name, obj.NoradID, err)
			continue
		}
		occ := visibility.Occluded(viewer, obj.Position, transform.Vec3{}, transform.EarthRadiusKm)
		sub, err := obj.Subpoint(now)
		if err != nil {
			fmt.Printf("  %s (NORAD %d): pos=(%.1f, %.1f, %.1f) occluded=%v\n",
				name, obj.NoradID, obj.Position.X, obj.Position.Y, obj.Position.Z, occ)
			continue
		}
		fmt.Printf("  %s (NORAD %d): pos=(%.1f, %.1f, %.1f) occluded=%v lat=%.2f lon=%.2f alt=%.0fkm\n",
			name, obj.NoradID, obj.Position.X, obj.Position.Y, obj.Position.Z, occ,
			sub.LatDeg, sub.LonDeg, sub.AltKm)
	}
}
