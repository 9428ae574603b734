package store

import "sync"

// Mirror is the fast-path write-through cache: a non-authoritative,
// in-memory copy of live records used for low-latency point lookups.
// It stores the same encrypted form as the durable store, is rebuilt from
// durable storage on cold start, and is never consulted for queries, so it
// can be dropped at any time without data loss.
type Mirror struct {
	mu      sync.RWMutex
	entries map[string]*Record
}

func NewMirror() *Mirror {
	return &Mirror{entries: make(map[string]*Record)}
}

// Get returns a copy of the cached record. A miss means nothing; the
// caller must fall through to the durable store.
func (m *Mirror) Get(key string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Put mirrors a just-written durable record. Tombstones are evicted rather
// than cached: a deleted record must not be servable from the fast path.
func (m *Mirror) Put(rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Deleted {
		delete(m.entries, rec.Key())
		return
	}
	m.entries[rec.Key()] = rec.clone()
}

// Forget evicts a key.
func (m *Mirror) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Reset replaces the whole mirror with the given records, skipping
// tombstones. Used on cold start and after a table rename.
func (m *Mirror) Reset(recs []*Record) {
	entries := make(map[string]*Record, len(recs))
	for _, rec := range recs {
		if rec.Deleted {
			continue
		}
		entries[rec.Key()] = rec.clone()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
}

// Len reports the number of cached records.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
