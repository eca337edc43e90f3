// Package bloom provides a probabilistic set of cache keys backed by
// github.com/bits-and-blooms/bloom/v3.
package bloom

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Default sizing for a KeyFilter.
const (
	DefaultExpectedKeys = 100000
	DefaultFPRate       = 0.01
)

// KeyFilter records which cache keys may exist in a persistent store so
// lookups for keys that were never stored skip the store entirely.
// It is safe for concurrent use.
type KeyFilter struct {
	mu sync.RWMutex
	f  *bloom.BloomFilter
}

// NewKeyFilter creates a filter sized for n expected keys with the given
// false positive rate.
func NewKeyFilter(n uint, fpRate float64) *KeyFilter {
	return &KeyFilter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add records key.
func (k *KeyFilter) Add(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.f.AddString(key)
}

// AddAll records every key in keys.
func (k *KeyFilter) AddAll(keys []string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		k.f.AddString(key)
	}
}

// MayContain reports whether key might have been added.
// False positives are possible; false negatives are not.
func (k *KeyFilter) MayContain(key string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.f.TestString(key)
}

// EstimatedCount returns the approximate number of keys in the filter.
func (k *KeyFilter) EstimatedCount() uint {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return uint(k.f.ApproximatedSize())
}
