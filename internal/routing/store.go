package routing

import (
	"sync"
	"sync/atomic"
)

// snapshot is an immutable view of the routing configuration. Readers load it once per
// decision and never observe a partially applied change.
type snapshot struct {
	generation uint64
	tables     []*compiledTable
	filters    []*compiledFilter
	filterSeq  int
	handlers   map[string]Handler
	transforms map[string]Transform
}

func (s *snapshot) table(id string) *compiledTable {
	for _, t := range s.tables {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// filtersCacheable reports whether the enabled filters depend only on cache key attributes
// and leave the event untouched.
func (s *snapshot) filtersCacheable() bool {
	for _, f := range s.filters {
		if f.IsEnabled() && !f.cacheable() {
			return false
		}
	}
	return true
}

// draft is the mutable copy handed to Store.Update.
type draft struct {
	snapshot
}

func (d *draft) putTable(t *compiledTable) (replaced bool) {
	for i, existing := range d.tables {
		if existing.ID == t.ID {
			d.tables[i] = t
			return true
		}
	}
	d.tables = append(d.tables, t)
	return false
}

func (d *draft) removeTable(id string) bool {
	for i, t := range d.tables {
		if t.ID == id {
			d.tables = append(d.tables[:i], d.tables[i+1:]...)
			return true
		}
	}
	return false
}

func (d *draft) putFilter(f *compiledFilter) (replaced bool) {
	for i, existing := range d.filters {
		if existing.ID == f.ID {
			f.seq = existing.seq
			d.filters[i] = f
			sortFilters(d.filters)
			return true
		}
	}
	d.filterSeq++
	f.seq = d.filterSeq
	d.filters = append(d.filters, f)
	sortFilters(d.filters)
	return false
}

func (d *draft) removeFilter(id string) bool {
	for i, f := range d.filters {
		if f.ID == id {
			d.filters = append(d.filters[:i], d.filters[i+1:]...)
			return true
		}
	}
	return false
}

// Store owns tables, filters, handlers, transforms and the decision cache. Update is the only
// way to change them: it applies a function to a private copy, publishes the copy under the
// next generation and resets the cache, all while holding the writer lock. Reads are lock-free.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	cache   *decisionCache
}

func NewStore(cacheSize int) *Store {
	s := &Store{cache: newDecisionCache(cacheSize, 1)}
	s.current.Store(&snapshot{
		generation: 1,
		handlers:   map[string]Handler{},
		transforms: map[string]Transform{},
	})
	return s
}

func (s *Store) load() *snapshot {
	return s.current.Load()
}

// Generation is the number of the configuration currently served.
func (s *Store) Generation() uint64 {
	return s.load().generation
}

// Update runs fn against a copy of the configuration. When fn returns an error nothing is
// published and the generation does not move.
func (s *Store) Update(fn func(d *draft) error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	d := &draft{snapshot: snapshot{
		generation: cur.generation,
		tables:     append([]*compiledTable(nil), cur.tables...),
		filters:    append([]*compiledFilter(nil), cur.filters...),
		filterSeq:  cur.filterSeq,
		handlers:   make(map[string]Handler, len(cur.handlers)),
		transforms: make(map[string]Transform, len(cur.transforms)),
	}}
	for k, v := range cur.handlers {
		d.handlers[k] = v
	}
	for k, v := range cur.transforms {
		d.transforms[k] = v
	}

	if err := fn(d); err != nil {
		return cur.generation, err
	}

	next := d.snapshot
	next.generation = cur.generation + 1
	s.current.Store(&next)
	s.cache.reset(next.generation)
	return next.generation, nil
}
