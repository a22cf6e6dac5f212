package classify

import "sync"

// dedupSet tracks claimed classification keys so each fact is emitted at
// most once per process. Persistence enforces the same key uniquely, so a
// replayed process converges to the same set.
type dedupSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newDedupSet() *dedupSet {
	return &dedupSet{seen: make(map[string]struct{})}
}

// claim returns true exactly once per key.
func (d *dedupSet) claim(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

func (d *dedupSet) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
