package eventlog

import (
	"context"
	"sync"

	"switchyard/pkg/models"
)

// Memory is an in-process Log. Versions are assigned in append order starting at 1.
type Memory struct {
	mu     sync.RWMutex
	events []models.Event
	byID   map[string]int
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

func (m *Memory) Append(_ context.Context, ev models.Event) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.byID[ev.ID]; ok {
		return m.events[idx].Clone(), nil
	}
	stored := ev.Clone()
	stored.Version = int64(len(m.events) + 1)
	m.byID[ev.ID] = len(m.events)
	m.events = append(m.events, stored)
	return stored.Clone(), nil
}

func (m *Memory) GetEvents(ctx context.Context, q Query) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.normalized()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Event
	skipped := 0
	for _, ev := range m.events {
		if !q.matches(ev) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, ev.Clone())
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
