// Package cache provides an in-memory rolling buffer of recently produced
// frames.
//
// The tick loop writes one frame per step; readers (HTTP handlers, the SSE
// stream) look frames up by step-rounded timestamp or take the latest.
// Entries older than the buffer window are evicted as new frames arrive.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jblestang/AISpaceTracker/internal/metrics"
	"github.com/jblestang/AISpaceTracker/internal/sim"
)

// Config holds frame buffer configuration.
type Config struct {
	Step   time.Duration // tick interval frames are keyed by
	Buffer time.Duration // how long frames are retained
}

// FrameBuffer is a rolling buffer of frames keyed by step-rounded
// timestamp. Safe for concurrent use: single writer (the tick loop), many
// readers.
type FrameBuffer struct {
	mu        sync.RWMutex
	entries   map[time.Time]*sim.FrameState
	latestKey time.Time

	config Config
	logger *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewFrameBuffer creates a frame buffer.
func NewFrameBuffer(config Config, logger *slog.Logger) *FrameBuffer {
	if config.Step <= 0 {
		config.Step = time.Second
	}
	if config.Buffer <= 0 {
		config.Buffer = 60 * time.Second
	}
	logger.Info("frame buffer initialized",
		"step_seconds", config.Step.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
	)
	return &FrameBuffer{
		entries: make(map[time.Time]*sim.FrameState),
		config:  config,
		logger:  logger,
	}
}

// RoundToStep rounds a timestamp down to the nearest step boundary so
// lookups hit consistently.
func (b *FrameBuffer) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(b.config.Step)
}

// Put stores a frame keyed by its step-rounded simulation time and evicts
// entries older than the buffer window.
func (b *FrameBuffer) Put(f *sim.FrameState) {
	key := b.RoundToStep(f.Time)
	cutoff := key.Add(-b.config.Buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = f
	if key.After(b.latestKey) {
		b.latestKey = key
	}
	for ts := range b.entries {
		if ts.Before(cutoff) {
			delete(b.entries, ts)
			b.evictions.Add(1)
		}
	}
}

// Get returns the frame for the given timestamp, or nil if not buffered.
func (b *FrameBuffer) Get(t time.Time) *sim.FrameState {
	key := b.RoundToStep(t)

	b.mu.RLock()
	f, ok := b.entries[key]
	b.mu.RUnlock()

	if ok {
		b.hits.Add(1)
		metrics.IncFrameBufferHits()
		return f
	}

	b.misses.Add(1)
	metrics.IncFrameBufferMisses()
	return nil
}

// Latest returns the most recent frame, or nil if the buffer is empty.
func (b *FrameBuffer) Latest() *sim.FrameState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries[b.latestKey]
}

// Recent returns up to count frames at or before t, ordered oldest-first.
// Used to build orbital trails.
func (b *FrameBuffer) Recent(t time.Time, count int) []*sim.FrameState {
	if count <= 0 {
		return nil
	}
	key := b.RoundToStep(t)

	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]*sim.FrameState, 0, count)
	for i := count - 1; i >= 0; i-- {
		ts := key.Add(-time.Duration(i) * b.config.Step)
		if f, ok := b.entries[ts]; ok {
			result = append(result, f)
		}
	}
	return result
}

// Stats returns hit, miss, eviction counters and the current size.
func (b *FrameBuffer) Stats() (hits, misses, evictions int64, size int) {
	b.mu.RLock()
	size = len(b.entries)
	b.mu.RUnlock()
	return b.hits.Load(), b.misses.Load(), b.evictions.Load(), size
}
