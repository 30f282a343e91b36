package naming

import (
	"context"
	"sync"
)

// Sequence hands out per-workflow counters. Next must return strictly
// increasing values starting at 1 for each key.
type Sequence interface {
	Next(ctx context.Context, key string) (int64, error)
}

// MemorySequence is a process-local Sequence. Counters restart at 1 when the
// process does and are not coordinated across instances.
type MemorySequence struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemorySequence returns an empty in-memory sequence.
func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[string]int64)}
}

// Next implements Sequence.
func (s *MemorySequence) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}
