package replay

import (
	"context"
	"sort"
	"sync"

	"switchyard/internal/constants"
	apperrors "switchyard/pkg/errors"
)

type ConfigRepository interface {
	Save(ctx context.Context, cfg Config) error
	// Get returns nil, nil when id is unknown.
	Get(ctx context.Context, id string) (*Config, error)
	List(ctx context.Context) ([]Config, error)
	Delete(ctx context.Context, id string) error
}

// CheckpointStore keeps the most recent checkpoints of every config, newest first.
type CheckpointStore interface {
	Save(ctx context.Context, configID string, cp Checkpoint) error
	// Latest returns nil, nil when the config has no checkpoint.
	Latest(ctx context.Context, configID string) (*Checkpoint, error)
	List(ctx context.Context, configID string) ([]Checkpoint, error)
}

// SessionStore persists finished sessions so they survive the process.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	// Load returns nil, nil when id is unknown.
	Load(ctx context.Context, id string) (*Session, error)
}

type MemoryConfigs struct {
	mu      sync.RWMutex
	configs map[string]Config
}

func NewMemoryConfigs() *MemoryConfigs {
	return &MemoryConfigs{configs: make(map[string]Config)}
}

func (m *MemoryConfigs) Save(_ context.Context, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.ID] = cfg
	return nil
}

func (m *MemoryConfigs) Get(_ context.Context, id string) (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[id]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *MemoryConfigs) List(_ context.Context) ([]Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Config, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryConfigs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[id]; !ok {
		return apperrors.ErrNotFound.WithMessagef("replay config %s not found", id)
	}
	delete(m.configs, id)
	return nil
}

type MemoryCheckpoints struct {
	mu   sync.Mutex
	ring map[string][]Checkpoint
}

func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{ring: make(map[string][]Checkpoint)}
}

func (m *MemoryCheckpoints) Save(_ context.Context, configID string, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append([]Checkpoint{cp}, m.ring[configID]...)
	if len(list) > constants.CheckpointRingSize {
		list = list[:constants.CheckpointRingSize]
	}
	m.ring[configID] = list
	return nil
}

func (m *MemoryCheckpoints) Latest(_ context.Context, configID string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.ring[configID]
	if len(list) == 0 {
		return nil, nil
	}
	cp := list[0]
	return &cp, nil
}

func (m *MemoryCheckpoints) List(_ context.Context, configID string) ([]Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Checkpoint(nil), m.ring[configID]...), nil
}

type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]Session)}
}

func (m *MemorySessions) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemorySessions) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
