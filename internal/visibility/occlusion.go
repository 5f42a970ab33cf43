// Package visibility decides whether tracked objects are geometrically
// hidden behind the central body from the viewer's position.
package visibility

import (
	"math"

	"github.com/jblestang/AISpaceTracker/internal/transform"
)

// Far-side heuristic parameters. The exact ray-sphere test can flicker at
// grazing incidence near the sphere's silhouette; when the body→viewer and
// body→object directions are more than ~101.5° apart and both points are
// clear of the surface, the object is treated as occluded regardless.
const (
	farSideDotThreshold   = -0.2
	farSideDistanceFactor = 1.2
)

// Occluded reports whether the object at objectPos is hidden behind the
// body (center bodyCenter, radius bodyRadius) from viewerPos. Decision
// procedure, first hit wins:
//
//  1. Object inside the body → occluded.
//  2. Ray-sphere: the viewer→object ray passes through the body and the
//     object lies beyond the ray's exit point → occluded.
//  3. Far-side heuristic (see constants above) → occluded.
//
// Otherwise visible.
func Occluded(viewerPos, objectPos, bodyCenter transform.Vec3, bodyRadius float64) bool {
	bodyToObject := objectPos.Sub(bodyCenter)
	if bodyToObject.Norm() < bodyRadius {
		return true
	}

	viewerToObject := objectPos.Sub(viewerPos)
	dir := viewerToObject.Normalize()
	viewerToBody := bodyCenter.Sub(viewerPos)

	// Closest approach of the viewer→object ray to the body center.
	t := viewerToBody.Dot(dir)
	closest := viewerPos.Add(dir.Scale(t))
	d := closest.Sub(bodyCenter).Norm()

	if d < bodyRadius {
		halfChord := math.Sqrt(bodyRadius*bodyRadius - d*d)
		tExit := t + halfChord
		if viewerToObject.Norm() > tExit && tExit > 0 {
			return true
		}
	}

	bodyToViewer := viewerPos.Sub(bodyCenter)
	dot := bodyToViewer.Normalize().Dot(bodyToObject.Normalize())
	if dot < farSideDotThreshold &&
		bodyToViewer.Norm() > farSideDistanceFactor*bodyRadius &&
		bodyToObject.Norm() > farSideDistanceFactor*bodyRadius {
		return true
	}

	return false
}
