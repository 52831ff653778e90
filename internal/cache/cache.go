package cache

// EvictFunc is called with every entry that leaves a Map through eviction,
// Delete or Clear.
type EvictFunc[K comparable, V any] func(key K, value V)

// Map is a keyed store with an optional soft limit.
//
// When the soft limit is exceeded, least recently used entries are evicted
// and handed to the eviction callback so the owner can release what they
// hold. A soft limit of 0 means unlimited: entries only leave through Delete
// or Clear.
//
// Map is not safe for concurrent use. It is owned by a single goroutine.
type Map[K comparable, V any] struct {
	entries   map[K]*lruNode[K, V]
	order     lruList[K, V]
	softLimit int
	onEvict   EvictFunc[K, V]
	evictions uint64
}

// New creates a Map with the given soft limit.
// A softLimit of 0 means unlimited. onEvict may be nil.
func New[K comparable, V any](softLimit int, onEvict EvictFunc[K, V]) *Map[K, V] {
	if softLimit < 0 {
		softLimit = 0
	}
	return &Map[K, V]{
		entries:   make(map[K]*lruNode[K, V]),
		softLimit: softLimit,
		onEvict:   onEvict,
	}
}

// Get retrieves a value and marks it as recently used.
// Returns (value, true) if found, (zero, false) otherwise.
func (m *Map[K, V]) Get(key K) (V, bool) {
	node, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	m.order.moveToFront(node)
	return node.value, true
}

// Peek retrieves a value without touching its recency.
func (m *Map[K, V]) Peek(key K) (V, bool) {
	node, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return node.value, true
}

// Set stores a value. A previous value under the same key is handed to the
// eviction callback. If the Map exceeds its soft limit afterwards, the least
// recently used entries are evicted.
func (m *Map[K, V]) Set(key K, value V) {
	if node, ok := m.entries[key]; ok {
		old := node.value
		node.value = value
		m.order.moveToFront(node)
		if m.onEvict != nil {
			m.onEvict(key, old)
		}
		return
	}

	node := &lruNode[K, V]{key: key, value: value}
	m.entries[key] = node
	m.order.pushFront(node)

	if m.softLimit > 0 && len(m.entries) > m.softLimit {
		m.evictOldest()
	}
}

// Delete removes an entry. Returns true if the entry was found and removed.
func (m *Map[K, V]) Delete(key K) bool {
	node, ok := m.entries[key]
	if !ok {
		return false
	}
	m.remove(node)
	return true
}

// Clear removes all entries, handing each to the eviction callback.
func (m *Map[K, V]) Clear() {
	if m.onEvict != nil {
		for key, node := range m.entries {
			m.onEvict(key, node.value)
		}
	}
	m.entries = make(map[K]*lruNode[K, V])
	m.order.clear()
}

// Range calls fn for every entry, most recently used first, until fn
// returns false.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for node := m.order.head; node != nil; node = node.next {
		if !fn(node.key, node.value) {
			return
		}
	}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return len(m.entries)
}

// Capacity returns the soft limit.
func (m *Map[K, V]) Capacity() int {
	return m.softLimit
}

// Stats returns map statistics.
func (m *Map[K, V]) Stats() Stats {
	return Stats{
		Len:       len(m.entries),
		Capacity:  m.softLimit,
		Evictions: m.evictions,
	}
}

// evictOldest removes least recently used entries until 3/4 of the soft
// limit remain, so eviction does not run on every insert past the limit.
func (m *Map[K, V]) evictOldest() {
	target := m.softLimit * 3 / 4
	if target < 1 {
		target = 1
	}
	for len(m.entries) > target {
		node := m.order.back()
		if node == nil {
			return
		}
		m.remove(node)
		m.evictions++
	}
}

func (m *Map[K, V]) remove(node *lruNode[K, V]) {
	m.order.unlink(node)
	delete(m.entries, node.key)
	if m.onEvict != nil {
		m.onEvict(node.key, node.value)
	}
}

// Stats contains map statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the soft limit (0 means unlimited).
	Capacity int
	// Evictions is the number of entries evicted by the soft limit.
	Evictions uint64
}
