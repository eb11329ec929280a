package enrich

import "sync"

// recentRing keeps the last n resolutions for status reporting.
type recentRing struct {
	mu    sync.Mutex
	items []Resolution
	max   int
}

func newRecentRing(max int) *recentRing {
	return &recentRing{max: max}
}

func (r *recentRing) add(res Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, res)
	if len(r.items) > r.max {
		r.items = r.items[len(r.items)-r.max:]
	}
}

// snapshot returns the retained resolutions, oldest first.
func (r *recentRing) snapshot() []Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Resolution, len(r.items))
	copy(out, r.items)
	return out
}
