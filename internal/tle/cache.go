package tle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultMaxAge is how long a persisted snapshot is considered fresh.
const DefaultMaxAge = 24 * time.Hour

const snapshotFileName = "tle_cache.json"

// snapshotFile is the on-disk form of a Snapshot. The timestamp is stored
// as integer epoch-seconds so the document round-trips losslessly.
type snapshotFile struct {
	Records      map[string]ElementRecord `json:"records"`
	DownloadedAt int64                    `json:"downloaded_at"`
}

// SnapshotCache persists the most recent catalog download as a single JSON
// document on disk. Single-writer: only the startup/refresh path stores.
type SnapshotCache struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time // overridable in tests
}

// NewSnapshotCache creates a cache rooted at dir.
func NewSnapshotCache(dir string, logger *slog.Logger) *SnapshotCache {
	return &SnapshotCache{dir: dir, logger: logger, now: time.Now}
}

// Path returns the location of the persisted snapshot.
func (c *SnapshotCache) Path() string {
	return filepath.Join(c.dir, snapshotFileName)
}

// Load returns the persisted snapshot if one exists and is younger than
// maxAge, or nil otherwise. A missing, unreadable or corrupt snapshot is a
// cache miss, never a fatal error: the caller falls through to re-fetch.
func (c *SnapshotCache) Load(maxAge time.Duration) *Snapshot {
	data, err := os.ReadFile(c.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("unreadable TLE cache, treating as miss", "path", c.Path(), "error", err)
		}
		return nil
	}

	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("corrupt TLE cache, treating as miss", "path", c.Path(), "error", err)
		return nil
	}

	downloadedAt := time.Unix(f.DownloadedAt, 0).UTC()
	if age := c.now().Sub(downloadedAt); age >= maxAge {
		c.logger.Info("TLE cache expired",
			"age_hours", age.Hours(),
			"max_age_hours", maxAge.Hours(),
		)
		return nil
	}

	return &Snapshot{Records: f.Records, DownloadedAt: downloadedAt}
}

// Store persists records with the current download timestamp, overwriting
// any prior snapshot. The cache directory is created if absent.
func (c *SnapshotCache) Store(records map[string]ElementRecord) (*Snapshot, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	downloadedAt := c.now().UTC().Truncate(time.Second)
	data, err := json.MarshalIndent(snapshotFile{
		Records:      records,
		DownloadedAt: downloadedAt.Unix(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding TLE cache: %w", err)
	}

	if err := os.WriteFile(c.Path(), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing TLE cache: %w", err)
	}

	return &Snapshot{Records: records, DownloadedAt: downloadedAt}, nil
}

// Clear removes the persisted snapshot. Clearing an absent snapshot is a
// no-op.
func (c *SnapshotCache) Clear() error {
	if err := os.Remove(c.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing TLE cache: %w", err)
	}
	return nil
}
