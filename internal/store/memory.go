package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. It backs STORE_DRIVER=memory and
// the test suites.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]map[string]interface{})}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(id, data), nil
}

func (s *MemoryStore) Create(ctx context.Context, collection string, fields Document, id string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]map[string]interface{})
	}
	s.collections[collection][id] = deepCopy(withoutID(fields))
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range withoutID(fields) {
		data[k] = deepCopyValue(v)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) FindOne(ctx context.Context, collection, field string, value interface{}) (Document, error) {
	docs, err := s.List(ctx, collection, Query{Filters: []Filter{{Field: field, Value: value}}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (s *MemoryStore) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	s.mu.RLock()
	docs := make([]Document, 0, len(s.collections[collection]))
	for id, data := range s.collections[collection] {
		docs = append(docs, snapshot(id, data))
	}
	s.mu.RUnlock()

	return applyQuery(docs, q), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func snapshot(id string, data map[string]interface{}) Document {
	doc := Document(deepCopy(data))
	doc["id"] = id
	return doc
}

func deepCopy(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopy(val)
	case Document:
		return deepCopy(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = deepCopyValue(val[i])
		}
		return out
	}
	return v
}
