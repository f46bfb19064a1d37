package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryStore is a thread-safe, in-process Store. It backs dry runs (mem://)
// and tests; nothing survives the process.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	logger      zerolog.Logger
}

// NewMemoryStore creates an empty store with no collections.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		logger:      zerolog.Nop(),
	}
}

func (s *MemoryStore) SetLogger(logger zerolog.Logger) { s.logger = logger }

func memKey(docType, id string) string { return docType + "\x00" + id }

func (s *MemoryStore) EnsureCollections(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if err := validateCollection(name); err != nil {
			return err
		}
		if _, ok := s.collections[name]; !ok {
			s.collections[name] = make(map[string]map[string]any)
		}
	}
	return nil
}

func (s *MemoryStore) collection(name string) (map[string]map[string]any, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}
	return c, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, docType, id string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(collection)
	if err != nil {
		s.logger.Debug().Err(err).Str("collection", collection).Str("type", docType).Str("id", id).Msg("get failed")
		return nil, false
	}
	doc, ok := c[memKey(docType, id)]
	if !ok {
		return nil, false
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		s.logger.Debug().Err(err).Str("collection", collection).Str("type", docType).Str("id", id).Msg("get failed")
		return nil, false
	}
	return raw, true
}

func (s *MemoryStore) Upsert(_ context.Context, collection, docType, id string, doc any) error {
	obj, err := toObject(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(collection, docType, id, obj)
}

func (s *MemoryStore) upsertLocked(collection, docType, id string, obj map[string]any) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	key := memKey(docType, id)
	existing, ok := c[key]
	if !ok {
		c[key] = obj
		return nil
	}
	for k, v := range obj {
		existing[k] = v
	}
	return nil
}

func (s *MemoryStore) BulkUpsert(_ context.Context, collection string, items []BulkItem) error {
	objs := make([]map[string]any, len(items))
	for i, item := range items {
		obj, err := toObject(item.Doc)
		if err != nil {
			return fmt.Errorf("bulk item %s/%s: %w", item.Type, item.ID, err)
		}
		objs[i] = obj
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range items {
		if err := s.upsertLocked(collection, item.Type, item.ID, objs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) AppendToArray(_ context.Context, collection, docType, id, fieldPath string, items any) error {
	path, err := splitPath(fieldPath)
	if err != nil {
		return err
	}
	arr, err := toArray(items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	doc, ok := c[memKey(docType, id)]
	if !ok {
		return fmt.Errorf("document %s/%s/%s not found", collection, docType, id)
	}

	parent := doc
	for _, p := range path[:len(path)-1] {
		next, ok := parent[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			parent[p] = next
		}
		parent = next
	}
	leaf := path[len(path)-1]
	current, _ := parent[leaf].([]any)
	parent[leaf] = append(current, arr...)
	return nil
}

// Count returns the number of documents in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}
