package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Loader obtains the element catalog, consulting the snapshot cache before
// reaching for the network.
type Loader struct {
	cache   *SnapshotCache
	fetcher *Fetcher
	maxAge  time.Duration
	logger  *slog.Logger
}

// NewLoader creates a Loader. maxAge <= 0 falls back to DefaultMaxAge.
func NewLoader(cache *SnapshotCache, fetcher *Fetcher, maxAge time.Duration, logger *slog.Logger) *Loader {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Loader{cache: cache, fetcher: fetcher, maxAge: maxAge, logger: logger}
}

// LoadCatalog returns the current element catalog. A fresh cached snapshot
// is used as-is; on miss or staleness the catalog is fetched, parsed,
// persisted and returned. A fetch failure after a cache miss is a hard
// error: the caller decides whether to degrade to an empty catalog, retry
// or abort.
func (l *Loader) LoadCatalog(ctx context.Context) (*Catalog, error) {
	if snap := l.cache.Load(l.maxAge); snap != nil {
		l.logger.Info("using cached TLE catalog",
			"count", len(snap.Records),
			"downloaded_at", snap.DownloadedAt.Format(time.RFC3339),
			"age_hours", time.Since(snap.DownloadedAt).Hours(),
			"path", l.cache.Path(),
		)
		return &Catalog{Source: "cache", FetchedAt: snap.DownloadedAt, Records: snap.Records}, nil
	}

	l.logger.Info("fetching TLE catalog", "url", l.fetcher.SourceURL())
	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE catalog: %w", err)
	}

	records, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing TLE catalog: %w", err)
	}

	fetchedAt := time.Now().UTC()
	if snap, err := l.cache.Store(records); err != nil {
		// Persisting is best-effort: the in-memory catalog is still good.
		l.logger.Warn("failed to persist TLE cache", "error", err)
	} else {
		fetchedAt = snap.DownloadedAt
	}

	l.logger.Info("TLE catalog downloaded", "count", len(records))
	return &Catalog{Source: l.fetcher.SourceURL(), FetchedAt: fetchedAt, Records: records}, nil
}
