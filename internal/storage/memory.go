package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps assets in process memory. It backs local development
// without a bucket and the tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
	// FailDelete makes Delete return this error when set.
	FailDelete error
}

// NewMemoryStore returns an empty store whose URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *MemoryStore) Upload(_ context.Context, key string, body []byte, _ string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	return Object{FileID: key, URL: m.baseURL + "/" + key}, nil
}

func (m *MemoryStore) Delete(_ context.Context, fileID string) error {
	if m.FailDelete != nil {
		return m.FailDelete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, fileID)
	return nil
}

// Has reports whether fileID is stored.
func (m *MemoryStore) Has(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[fileID]
	return ok
}

// Len is the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
