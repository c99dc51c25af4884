// Package history keeps the rolling, newest-first window of glucose readings
package history

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mrcode/glucose-widget/internal/models"
)

// Defaults for a new buffer
const (
	DefaultCapacity = 10
	DefaultMaxAge   = time.Hour

	minCapacity = 2
)

// ErrInvalidInput is returned when a reading or collection is malformed
var ErrInvalidInput = errors.New("invalid data provided")

// Buffer is a fixed-capacity history of readings, index 0 being the newest.
// Only the poll completion mutates it; readers always get copies.
type Buffer struct {
	mu       sync.RWMutex
	readings []models.Reading
	capacity int
	maxAge   time.Duration
	now      func() time.Time
}

// New creates an empty buffer holding at most capacity readings, considered
// stale once its newest reading is older than maxAge
func New(capacity int, maxAge time.Duration) *Buffer {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Buffer{
		capacity: capacity,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Capacity returns the maximum number of readings kept
func (b *Buffer) Capacity() int {
	return b.capacity
}

// NeedsRefill reports whether the buffer should be resynced from a graph window
func (b *Buffer) NeedsRefill() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.readings) == 0 {
		return true
	}
	age := b.now().Sub(b.readings[0].Time())
	return age > b.maxAge
}

// Update adds a single current reading. An empty buffer is seeded with
// capacity copies of it so consumers needing several samples can run on a
// cold start. A reading with the head's timestamp is ignored.
func (b *Buffer) Update(r models.Reading) error {
	if !r.Valid() {
		return fmt.Errorf("%w: reading %+v", ErrInvalidInput, r)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.readings) == 0 {
		b.readings = make([]models.Reading, b.capacity)
		for i := range b.readings {
			b.readings[i] = r
		}
		return nil
	}

	if r.Timestamp != b.readings[0].Timestamp {
		b.readings = append([]models.Reading{r}, b.readings...)
	}
	if len(b.readings) > b.capacity {
		b.readings = b.readings[:b.capacity]
	}
	return nil
}

// Populate replaces the history with the newest capacity-1 readings of rs,
// sorted newest first with duplicate timestamps dropped
func (b *Buffer) Populate(rs []models.Reading) error {
	sorted := make([]models.Reading, 0, len(rs))
	for i, r := range rs {
		if !r.Valid() {
			return fmt.Errorf("%w: graph entry %d %+v", ErrInvalidInput, i, r)
		}
		sorted = append(sorted, r)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	limit := b.capacity - 1
	readings := make([]models.Reading, 0, limit)
	for _, r := range sorted {
		if len(readings) == limit {
			break
		}
		if n := len(readings); n > 0 && readings[n-1].Timestamp == r.Timestamp {
			continue
		}
		readings = append(readings, r)
	}

	b.mu.Lock()
	b.readings = readings
	b.mu.Unlock()
	return nil
}

// History returns a copy of the readings, newest first
func (b *Buffer) History() []models.Reading {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Reading, len(b.readings))
	copy(out, b.readings)
	return out
}

// Head returns the newest reading
func (b *Buffer) Head() (models.Reading, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.readings) == 0 {
		return models.Reading{}, false
	}
	return b.readings[0], true
}

// Len returns the number of readings held
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.readings)
}

// Reset drops all readings, forcing the next poll to refill
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.readings = nil
	b.mu.Unlock()
}
