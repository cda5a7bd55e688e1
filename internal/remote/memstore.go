package remote

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStore is an in-memory Store. It backs offline mode and tests:
// subscriptions deliver synchronously, so a test can Set a document and
// assert on the callback without sleeping.
type MemStore struct {
	mu       sync.Mutex
	docs     map[string]map[string]any
	watchers map[string][]*memWatcher

	// SetCalls counts physical writes per path, for coalescing assertions.
	setCalls map[string]int
}

type memWatcher struct {
	fn       WatchFunc
	canceled bool
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		docs:     make(map[string]map[string]any),
		watchers: make(map[string][]*memWatcher),
		setCalls: make(map[string]int),
	}
}

// Subscribe registers a watcher and immediately delivers the current
// state (nil data for an absent document).
func (m *MemStore) Subscribe(_ context.Context, path string, fn WatchFunc) (CancelFunc, error) {
	w := &memWatcher{fn: fn}

	m.mu.Lock()
	m.watchers[path] = append(m.watchers[path], w)
	current := cloneDoc(m.docs[path])
	m.mu.Unlock()

	fn(DocID(path), current)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		w.canceled = true

		list := m.watchers[path]
		for i, candidate := range list {
			if candidate == w {
				m.watchers[path] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}, nil
}

// Set stores a deep copy of data and notifies watchers.
func (m *MemStore) Set(_ context.Context, path string, data map[string]any) error {
	m.mu.Lock()
	m.docs[path] = cloneDoc(data)
	m.setCalls[path]++
	watchers, snapshot := m.watchersAndDocLocked(path)
	m.mu.Unlock()

	m.deliver(path, watchers, snapshot)

	return nil
}

// Delete removes the document and notifies watchers with nil data.
func (m *MemStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	delete(m.docs, path)
	watchers, _ := m.watchersAndDocLocked(path)
	m.mu.Unlock()

	m.deliver(path, watchers, nil)

	return nil
}

// Doc returns a copy of the stored document, or nil.
func (m *MemStore) Doc(path string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return cloneDoc(m.docs[path])
}

// SetCount returns how many physical writes path has received.
func (m *MemStore) SetCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.setCalls[path]
}

func (m *MemStore) watchersAndDocLocked(path string) ([]*memWatcher, map[string]any) {
	watchers := make([]*memWatcher, len(m.watchers[path]))
	copy(watchers, m.watchers[path])

	return watchers, cloneDoc(m.docs[path])
}

// deliver invokes watchers outside the store lock, re-checking the
// canceled flag so a cancellation that raced the snapshot wins.
func (m *MemStore) deliver(path string, watchers []*memWatcher, data map[string]any) {
	id := DocID(path)

	for _, w := range watchers {
		m.mu.Lock()
		canceled := w.canceled
		m.mu.Unlock()

		if !canceled {
			w.fn(id, cloneDoc(data))
		}
	}
}

// cloneDoc deep-copies a document through JSON, matching the shapes a
// wire backend would deliver.
func cloneDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil
	}

	var clone map[string]any
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil
	}

	return clone
}
