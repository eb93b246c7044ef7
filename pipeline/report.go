package pipeline

import (
	"sync"
	"time"
)

// TaskResult describes one published keyword.
type TaskResult struct {
	Row         int      `json:"row"`
	Keyword     string   `json:"keyword"`
	URL         string   `json:"url"`
	PostID      int      `json:"post_id"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// TaskFailure describes one abandoned keyword. Its row stays pending.
type TaskFailure struct {
	Row     int    `json:"row"`
	Keyword string `json:"keyword"`
	Stage   string `json:"stage"`
	Err     string `json:"error"`
}

// TenantReport summarizes one tenant. Err is set when the tenant was abandoned
// before any keyword ran.
type TenantReport struct {
	TenantID    string        `json:"tenant_id"`
	Pending     int           `json:"pending"`
	Published   []TaskResult  `json:"published"`
	Failed      []TaskFailure `json:"failed"`
	Skipped     int           `json:"skipped"`
	Suggestions int           `json:"suggestions"`
	Err         string        `json:"error,omitempty"`
	Finished    time.Time     `json:"finished"`
}

// Report is the outcome of one run.
type Report struct {
	Tenants []TenantReport `json:"tenants"`
}

// Published counts published tasks over all tenants.
func (r Report) Published() int {
	n := 0
	for _, t := range r.Tenants {
		n += len(t.Published)
	}
	return n
}

// Failed counts abandoned tasks and tenants.
func (r Report) Failed() int {
	n := 0
	for _, t := range r.Tenants {
		n += len(t.Failed)
		if t.Err != "" {
			n++
		}
	}
	return n
}

// Tracker keeps the latest report per tenant for the status endpoint.
type Tracker struct {
	mu      sync.RWMutex
	order   []string
	tenants map[string]TenantReport
}

func NewTracker() *Tracker {
	return &Tracker{tenants: make(map[string]TenantReport)}
}

func (t *Tracker) Record(r TenantReport) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tenants[r.TenantID]; !ok {
		t.order = append(t.order, r.TenantID)
	}
	t.tenants[r.TenantID] = r
}

// Snapshot returns the recorded tenants in first-seen order.
func (t *Tracker) Snapshot() Report {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := Report{Tenants: make([]TenantReport, 0, len(t.order))}
	for _, id := range t.order {
		out.Tenants = append(out.Tenants, t.tenants[id])
	}
	return out
}
