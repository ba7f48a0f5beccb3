// Package ratelimit implements fixed-capacity cooldown buckets keyed by an
// identity string.
package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxKeys bounds a Mapping when no explicit limit is configured.
const DefaultMaxKeys = 50000

// Bucket counts events inside a window that starts at the first event after
// the previous window expired. It is not safe for concurrent use on its own.
type Bucket struct {
	capacity    int
	window      time.Duration
	count       int
	windowStart time.Time
}

func NewBucket(capacity int, window time.Duration) *Bucket {
	return &Bucket{capacity: capacity, window: window}
}

// Update records one event at now and reports whether the bucket is limited.
// A limited bucket keeps counting until its window expires.
func (b *Bucket) Update(now time.Time) bool {
	if b.windowStart.IsZero() || now.Sub(b.windowStart) > b.window {
		b.count = 1
		b.windowStart = now
		return false
	}
	b.count++
	return b.count > b.capacity
}

func (b *Bucket) Count() int {
	return b.count
}

// Mapping holds one Bucket per key. Idle buckets are evicted after twice the
// window, and the number of live buckets never exceeds maxKeys; an evicted
// key starts cold again.
type Mapping struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	buckets  *expirable.LRU[string, *Bucket]
}

func NewMapping(capacity int, window time.Duration, maxKeys int) *Mapping {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Mapping{
		capacity: capacity,
		window:   window,
		buckets:  expirable.NewLRU[string, *Bucket](maxKeys, nil, 2*window),
	}
}

// Update records an event for key at now and reports whether key is limited.
func (m *Mapping) Update(key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.buckets.Get(key)
	if !ok {
		bucket = NewBucket(m.capacity, m.window)
	}
	limited := bucket.Update(now)
	// re-adding refreshes the idle deadline
	m.buckets.Add(key, bucket)
	return limited
}

// Len reports the number of live buckets.
func (m *Mapping) Len() int {
	return m.buckets.Len()
}
