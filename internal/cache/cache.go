// Package cache implements the bounded LRU + TTL + stale-while-revalidate
// suggestion cache described in spec.md §4.3, including its single-flight
// guarantee (at most one computation per key across concurrent callers).
package cache

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// Status is the three-way result of a Get: a hit that is still fresh, a hit
// that is stale but usable while a refresh runs, or a miss.
type Status int

const (
	Miss Status = iota
	Fresh
	Stale
)

// Entry is the stored form of a CacheEntry (spec.md §3). Mutated only by
// the single-flight refresher per entry (spec.md §3 "Lifecycle").
type Entry struct {
	Value    protocol.Response
	CWDHash  string
	GitHash  string
	CreatedAt time.Time
	TTL      time.Duration
	Negative bool

	refreshInFlight bool
}

// node is the payload stored in each list.Element, so the LRU list can be
// walked to evict the least-recently-used key.
type node struct {
	key   Key
	entry *Entry
}

// Cache is a single mutex-guarded map plus an LRU list, exactly the
// concurrency model spec.md §4.3/§5 calls for: "a single mutex-guarded map
// is acceptable; the critical sections are pointer moves and TTL
// comparisons."
type Cache struct {
	mu         sync.Mutex
	capacity   int
	staleRatio float64
	items      map[Key]*list.Element
	order      *list.List // front = most recently used

	sf singleflight.Group // golang.org/x/sync, teacher's own dependency
}

// New builds a Cache with the given bounded capacity and stale ratio
// (spec.md: stale threshold = stale_ratio × ttl, default 0.8).
func New(capacity int, staleRatio float64) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity:   capacity,
		staleRatio: staleRatio,
		items:      make(map[Key]*list.Element, capacity),
		order:      list.New(),
	}
}

// Get reports whether key is Fresh, Stale, or a Miss, per spec.md §8:
// "age < stale_ratio·ttl → Fresh; stale_ratio·ttl ≤ age < ttl → Stale;
// age ≥ ttl → Miss." A Fresh or Stale hit also promotes the entry to the
// front of the LRU order.
func (c *Cache) Get(key Key) (Status, *protocol.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Miss, nil
	}
	n := el.Value.(*node)
	age := time.Since(n.entry.CreatedAt)

	if age >= n.entry.TTL {
		c.removeLocked(el)
		return Miss, nil
	}

	c.order.MoveToFront(el)
	value := n.entry.Value // copy out before releasing the lock

	if age >= time.Duration(float64(n.entry.TTL)*c.staleRatio) {
		return Stale, &value
	}
	return Fresh, &value
}

// Store inserts or replaces key's entry and evicts the least-recently-used
// entry if capacity is exceeded. Negative (empty/failed) responses are
// stored with ttl_negative_ms by the caller, not here — Store just records
// whatever TTL and Negative flag it is given.
func (c *Cache) Store(key Key, value protocol.Response, ttl time.Duration, negative bool, cwdHash, gitHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &Entry{
		Value:     value,
		CWDHash:   cwdHash,
		GitHash:   gitHash,
		CreatedAt: time.Now(),
		TTL:       ttl,
		Negative:  negative,
	}

	if el, ok := c.items[key]; ok {
		el.Value.(*node).entry = entry
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&node{key: key, entry: entry})
	c.items[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
}

// removeLocked removes an element from both the map and the list. Caller
// must hold c.mu.
func (c *Cache) removeLocked(el *list.Element) {
	n := el.Value.(*node)
	delete(c.items, n.key)
	c.order.Remove(el)
}

// TryMarkRefreshInFlight sets the entry's refresh_in_flight flag if it
// isn't already set, returning true if this call won the race (i.e. the
// caller should spawn the background refresh). Matches spec.md §4.2 step 3:
// "if no refresh in flight, mark refresh_in_flight and spawn a background
// refresh."
func (c *Cache) TryMarkRefreshInFlight(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	n := el.Value.(*node)
	if n.entry.refreshInFlight {
		return false
	}
	n.entry.refreshInFlight = true
	return true
}

// ClearRefreshInFlight resets the flag once a background refresh completes
// (success or failure), so a future stale hit can trigger another refresh.
func (c *Cache) ClearRefreshInFlight(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*node).entry.refreshInFlight = false
	}
}

// InvalidateByContext evicts every entry whose stored cwd/git hash matches
// the given hint (spec.md §4.3 invalidate_by_context, driven by the
// invalidate_context control op, §6.1). An empty hint argument matches
// entries that don't carry that particular hash dimension.
func (c *Cache) InvalidateByContext(cwdHash, gitHash string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for _, el := range c.items {
		n := el.Value.(*node)
		cwdMatch := cwdHash == "" || n.entry.CWDHash == cwdHash
		gitMatch := gitHash == "" || n.entry.GitHash == gitHash
		if cwdMatch && gitMatch {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.removeLocked(el)
	}
	return len(toRemove)
}

// Singleflight ensures at-most-one computation runs per key across
// concurrent callers (spec.md §8: "For every key K with concurrent N
// identical in-flight misses, at most one LLM call is made"). All waiting
// callers receive the same (value, error, shared) result; shared reports
// whether this particular call was a follower rather than the executor.
func (c *Cache) Singleflight(key Key, fn func() (protocol.Response, error)) (protocol.Response, error, bool) {
	v, err, shared := c.sf.Do(string(key), func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return protocol.Response{}, err, shared
	}
	return v.(protocol.Response), nil, shared
}

// Len reports the current number of entries, for diagnostics/tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
