package bridge

import (
	"strings"
	"sync"
)

// Outputs is the set of auxiliary artifact paths registered for the next
// emitted test record. Paths keep registration order; duplicates are dropped.
// Safe for concurrent use.
type Outputs struct {
	mu    sync.Mutex
	paths []string
	seen  map[string]struct{}
}

// NewOutputs creates an empty set.
func NewOutputs() *Outputs {
	return &Outputs{seen: make(map[string]struct{})}
}

// Add registers paths. Empty strings are ignored.
func (o *Outputs) Add(paths ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, dup := o.seen[p]; dup {
			continue
		}
		o.seen[p] = struct{}{}
		o.paths = append(o.paths, p)
	}
}

// Len returns the number of registered paths.
func (o *Outputs) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.paths)
}

// Drain returns the registered paths joined by newlines and clears the set.
// ok is false when nothing was registered.
func (o *Outputs) Drain() (joined string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.paths) == 0 {
		return "", false
	}
	joined = strings.Join(o.paths, "\n")
	o.paths = nil
	clear(o.seen)
	return joined, true
}
