package queue

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process worksheet. Rows[0] is worksheet row DataStartRow.
type Memory struct {
	mu   sync.Mutex
	opts Options
	Rows [][]string
}

func NewMemory(rows [][]string, opts Options) *Memory {
	return &Memory{Rows: rows, opts: opts.withDefaults()}
}

func (m *Memory) Pending(ctx context.Context) ([]KeywordTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PendingRows(m.Rows, DataStartRow, m.opts.PendingMarker), nil
}

func (m *Memory) Inventory(ctx context.Context) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CompletedLinks(m.Rows, m.opts.DoneStatus), nil
}

// Complete marks row as done with the published link.
func (m *Memory) Complete(ctx context.Context, row int, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := row - DataStartRow
	if i < 0 || i >= len(m.Rows) {
		return fmt.Errorf("row %d: %w", row, ErrNoRows)
	}
	r := m.Rows[i]
	for len(r) < 3 {
		r = append(r, "")
	}
	r[1], r[2] = m.opts.DoneStatus, link
	m.Rows[i] = r
	return nil
}

func (m *Memory) Append(ctx context.Context, topics []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rows = append(m.Rows, growthRows(topics, m.opts)...)
	return nil
}

// Snapshot returns a copy of the rows.
func (m *Memory) Snapshot() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
