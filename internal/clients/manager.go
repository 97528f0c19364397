package clients

import (
	"sort"
	"sync"
)

// Manager tracks open viewers keyed by viewer id
type Manager[V any] struct {
	mu      sync.RWMutex
	viewers map[string]V
}

func NewManager[V any]() *Manager[V] {
	return &Manager[V]{viewers: make(map[string]V)}
}

// Add registers v under id, returning the viewer it replaced, if any.
func (m *Manager[V]) Add(id string, v V) (old V, replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, replaced = m.viewers[id]
	m.viewers[id] = v
	return
}

func (m *Manager[V]) Remove(id string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.viewers[id]
	if ok {
		delete(m.viewers, id)
	}
	return v, ok
}

func (m *Manager[V]) Get(id string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.viewers[id]
	return v, ok
}

func (m *Manager[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.viewers)
}

// Drain removes and returns every viewer.
func (m *Manager[V]) Drain() []V {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]V, 0, len(m.viewers))
	for id, v := range m.viewers {
		out = append(out, v)
		delete(m.viewers, id)
	}
	return out
}

// ForEach executes fn over a snapshot taken in id order, without holding
// the lock, so fn may add or remove viewers.
func (m *Manager[V]) ForEach(fn func(id string, v V)) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.viewers))
	for id := range m.viewers {
		ids = append(ids, id)
	}
	snapshot := make(map[string]V, len(ids))
	for _, id := range ids {
		snapshot[id] = m.viewers[id]
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	for _, id := range ids {
		fn(id, snapshot[id])
	}
}
