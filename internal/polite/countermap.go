package polite

import (
	"sync"
	"sync/atomic"
)

// atomicCounterMap lazily creates one atomic.Int64 per distinct counter
// name; every lookup takes the map's mutex.
type atomicCounterMap struct {
	mu   sync.Mutex
	vals map[string]*atomic.Int64
}

func newAtomicCounterMap() atomicCounterMap {
	return atomicCounterMap{vals: make(map[string]*atomic.Int64)}
}

func (m *atomicCounterMap) get(name string) *atomic.Int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[name]
	if !ok {
		v = &atomic.Int64{}
		m.vals[name] = v
	}
	return v
}

func (m *atomicCounterMap) each(fn func(name string, v int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, v := range m.vals {
		fn(name, v.Load())
	}
}
