package tle

import "time"

// ElementRecord is one object's raw two-line element set. Immutable once
// parsed; uniquely identified by Name within a catalog snapshot.
type ElementRecord struct {
	Name  string `json:"name"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// Snapshot is a full catalog download persisted as a single unit. A new
// download supersedes the previous snapshot wholesale; snapshots are never
// merged.
type Snapshot struct {
	Records      map[string]ElementRecord
	DownloadedAt time.Time
}

// Catalog is the element dataset currently driving the tracker, together
// with its provenance.
type Catalog struct {
	Source    string
	FetchedAt time.Time
	Records   map[string]ElementRecord
}
