package tle

import (
	"testing"
	"time"
)

// TestStoreGetSet verifies the atomic catalog swap.
func TestStoreGetSet(t *testing.T) {
	store := NewStore()
	if store.Get() != nil {
		t.Fatal("new store should be empty")
	}

	c := &Catalog{Source: "test", FetchedAt: time.Now().UTC(), Records: testRecords()}
	store.Set(c)
	if store.Get() != c {
		t.Error("Get should return the set catalog")
	}
}

// TestStoreAgeSeconds verifies age reporting including the empty case.
func TestStoreAgeSeconds(t *testing.T) {
	store := NewStore()
	if age := store.AgeSeconds(); age != -1 {
		t.Errorf("empty store age: got %v, want -1", age)
	}

	store.Set(&Catalog{FetchedAt: time.Now().Add(-30 * time.Minute)})
	age := store.AgeSeconds()
	if age < 1790 || age > 1810 {
		t.Errorf("age: got %.0f s, want about 1800", age)
	}
}
