package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and local runs. Documents
// are kept as JSON to force the same encode/decode round-trip as a real
// backend. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]json.RawMessage)}
}

func (s *MemoryStore) Collection(name string) Collection {
	return &memoryCollection{store: s, name: name}
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryCollection struct {
	store *MemoryStore
	name  string
}

func (c *memoryCollection) Get(ctx context.Context, id string, v any) (bool, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	docs, ok := c.store.collections[c.name]
	if !ok {
		return false, nil
	}
	raw, ok := docs[id]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding %s/%s: %w", c.name, id, err)
	}
	return true, nil
}

func (c *memoryCollection) Set(ctx context.Context, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", c.name, id, err)
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.store.collections[c.name] == nil {
		c.store.collections[c.name] = make(map[string]json.RawMessage)
	}
	c.store.collections[c.name][id] = raw
	return nil
}

func (c *memoryCollection) Merge(ctx context.Context, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", c.name, id, err)
	}
	var incoming map[string]json.RawMessage
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return fmt.Errorf("merge value for %s/%s is not an object: %w", c.name, id, err)
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.store.collections[c.name] == nil {
		c.store.collections[c.name] = make(map[string]json.RawMessage)
	}
	existing := map[string]json.RawMessage{}
	if prev, ok := c.store.collections[c.name][id]; ok {
		if err := json.Unmarshal(prev, &existing); err != nil {
			return fmt.Errorf("decoding existing %s/%s: %w", c.name, id, err)
		}
	}
	for k, val := range incoming {
		existing[k] = val
	}
	merged, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("encoding merged %s/%s: %w", c.name, id, err)
	}
	c.store.collections[c.name][id] = merged
	return nil
}

func (c *memoryCollection) Stream(ctx context.Context, fn func(doc Document) error) error {
	c.store.mu.RLock()
	docs := c.store.collections[c.name]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	snapshot := make(map[string]json.RawMessage, len(docs))
	for id, raw := range docs {
		snapshot[id] = raw
	}
	c.store.mu.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&memoryDocument{id: id, raw: snapshot[id]}); err != nil {
			return err
		}
	}
	return nil
}

type memoryDocument struct {
	id  string
	raw json.RawMessage
}

func (d *memoryDocument) ID() string {
	return d.id
}

func (d *memoryDocument) DataTo(v any) error {
	return json.Unmarshal(d.raw, v)
}
