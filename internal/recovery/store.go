package recovery

import (
	"context"
	"sort"
	"sync"

	apperrors "switchyard/pkg/errors"
)

type PlanRepository interface {
	Save(ctx context.Context, p Plan) error
	// Get returns nil, nil when id is unknown.
	Get(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
	Delete(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	Save(ctx context.Context, e Execution) error
	// Get returns nil, nil when id is unknown.
	Get(ctx context.Context, id string) (*Execution, error)
	// List returns the newest executions first. An empty planID lists every plan.
	List(ctx context.Context, planID string, limit int) ([]Execution, error)
}

type MemoryPlans struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

func NewMemoryPlans() *MemoryPlans {
	return &MemoryPlans{plans: make(map[string]Plan)}
}

func (m *MemoryPlans) Save(_ context.Context, p Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *MemoryPlans) Get(_ context.Context, id string) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryPlans) List(_ context.Context) ([]Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryPlans) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[id]; !ok {
		return apperrors.ErrNotFound.WithMessagef("recovery plan %s not found", id)
	}
	delete(m.plans, id)
	return nil
}

// MemoryExecutions keeps at most limit executions, dropping the oldest.
type MemoryExecutions struct {
	mu    sync.RWMutex
	limit int
	order []string
	execs map[string]Execution
}

func NewMemoryExecutions(limit int) *MemoryExecutions {
	return &MemoryExecutions{limit: limit, execs: make(map[string]Execution)}
}

func (m *MemoryExecutions) Save(_ context.Context, e Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.execs[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.execs[e.ID] = e.clone()

	if m.limit > 0 {
		for len(m.order) > m.limit {
			delete(m.execs, m.order[0])
			m.order = m.order[1:]
		}
	}
	return nil
}

func (m *MemoryExecutions) Get(_ context.Context, id string) (*Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.execs[id]
	if !ok {
		return nil, nil
	}
	out := e.clone()
	return &out, nil
}

func (m *MemoryExecutions) List(_ context.Context, planID string, limit int) ([]Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Execution
	for i := len(m.order) - 1; i >= 0; i-- {
		e := m.execs[m.order[i]]
		if planID != "" && e.PlanID != planID {
			continue
		}
		out = append(out, e.clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
