package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"

	"switchyard/pkg/models"
)

type lookupResult int

const (
	cacheMiss lookupResult = iota
	cacheHit
	cacheStale
)

func (r lookupResult) String() string {
	switch r {
	case cacheHit:
		return "hit"
	case cacheStale:
		return "stale"
	default:
		return "miss"
	}
}

type cacheEntry struct {
	generation uint64
	result     RoutingResult
}

type cacheShard struct {
	generation uint64
	entries    sync.Map
	size       atomic.Int64
}

// decisionCache holds routing decisions tagged with the configuration generation they were
// computed under. It never evicts; once full, new decisions are simply not stored until the
// next reset.
type decisionCache struct {
	limit int64
	shard atomic.Pointer[cacheShard]
}

func newDecisionCache(limit int, generation uint64) *decisionCache {
	c := &decisionCache{limit: int64(limit)}
	c.shard.Store(&cacheShard{generation: generation})
	return c
}

func (c *decisionCache) get(key string, generation uint64) (RoutingResult, lookupResult) {
	shard := c.shard.Load()
	if shard.generation != generation {
		return RoutingResult{}, cacheStale
	}

	v, ok := shard.entries.Load(key)
	if !ok {
		return RoutingResult{}, cacheMiss
	}
	entry := v.(*cacheEntry)
	if entry.generation != generation {
		if shard.entries.CompareAndDelete(key, v) {
			shard.size.Add(-1)
		}
		return RoutingResult{}, cacheStale
	}
	return entry.result.clone(), cacheHit
}

func (c *decisionCache) put(key string, generation uint64, result RoutingResult) bool {
	if c.limit <= 0 {
		return false
	}
	shard := c.shard.Load()
	if shard.generation != generation {
		return false
	}

	for {
		n := shard.size.Load()
		if n >= c.limit {
			return false
		}
		if shard.size.CompareAndSwap(n, n+1) {
			break
		}
	}

	if _, loaded := shard.entries.LoadOrStore(key, &cacheEntry{generation: generation, result: result.clone()}); loaded {
		shard.size.Add(-1)
		return false
	}
	return true
}

// reset drops every entry and starts accepting decisions for generation.
func (c *decisionCache) reset(generation uint64) {
	c.shard.Store(&cacheShard{generation: generation})
}

func (c *decisionCache) len() int {
	return int(c.shard.Load().size.Load())
}

// cacheKey digests event type, source, table id and metadata encoded together as one JSON
// array, so no component can bleed into its neighbour. json.Marshal sorts map keys, so equal
// metadata yields equal keys.
func cacheKey(ev models.Event, tableID string) (string, bool) {
	data, err := json.Marshal([]interface{}{ev.Type, ev.Source, tableID, ev.Metadata})
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), true
}
