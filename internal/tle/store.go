package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current catalog.
type Store struct {
	catalog atomic.Pointer[Catalog]
	mu      sync.Mutex // serializes refresh operations
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Set atomically replaces the current catalog.
func (s *Store) Set(c *Catalog) {
	s.catalog.Store(c)
}

// AgeSeconds returns the age of the current catalog in seconds, or -1 if
// no catalog is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.FetchedAt).Seconds()
}

// Lock acquires the refresh mutex for serializing refresh operations.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the refresh mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
