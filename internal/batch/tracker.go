package batch

import (
	"sort"
	"sync"
	"sync/atomic"
)

// tracker keeps the aggregate progress counters. Counters are atomic and the
// in-flight title set sits behind its own mutex, so readers never block a
// worker mid-item.
type tracker struct {
	total     int
	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64

	mu       sync.RWMutex
	inFlight map[string]string // item id -> title
}

func newTracker(total int) *tracker {
	return &tracker{total: total, inFlight: map[string]string{}}
}

func (t *tracker) start(id, title string) {
	t.mu.Lock()
	t.inFlight[id] = title
	t.mu.Unlock()
}

func (t *tracker) finish(id string, ok bool) {
	t.mu.Lock()
	delete(t.inFlight, id)
	t.mu.Unlock()
	if ok {
		t.completed.Add(1)
	} else {
		t.failed.Add(1)
	}
}

func (t *tracker) skip() { t.skipped.Add(1) }

// snapshot returns completed count, failed count, and current in-flight
// titles. Values may be slightly stale by design.
func (t *tracker) snapshot() (completed, failed int64, inFlight []string) {
	completed = t.completed.Load()
	failed = t.failed.Load()
	t.mu.RLock()
	for _, title := range t.inFlight {
		inFlight = append(inFlight, title)
	}
	t.mu.RUnlock()
	sort.Strings(inFlight)
	return completed, failed, inFlight
}
