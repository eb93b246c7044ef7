package credentials

import (
	"errors"
	"strings"
	"sync"
)

// Pool holds an ordered list of API keys and the index of the key in use.
// One Pool is shared by every caller in a run; rotation is global because
// quota is account-scoped.
type Pool struct {
	mu      sync.Mutex
	keys    []string
	current int
}

// NewPool returns a pool over keys. Blank entries are dropped; at least one key must remain.
func NewPool(keys []string) (*Pool, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("credential pool requires at least one key")
	}
	return &Pool{keys: cleaned}, nil
}

// Size is the number of keys in the pool.
func (p *Pool) Size() int {
	return len(p.keys)
}

// Current returns the cursor and the key it points at.
func (p *Pool) Current() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.keys[p.current]
}

// Rotate advances the cursor unconditionally and returns the new index.
func (p *Pool) Rotate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = (p.current + 1) % len(p.keys)
	return p.current
}

// RotateFrom advances the cursor only if it still points at from. Two callers
// failing on the same key therefore move the cursor once, not twice.
func (p *Pool) RotateFrom(from int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == from {
		p.current = (p.current + 1) % len(p.keys)
	}
	return p.current
}
