package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Limmita2/FaseWatch/internal/identity"
)

// BlobStore is an in-memory blob store with per-operation error injection.
type BlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutError    error
	GetError    error
	DeleteError error
}

func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

func (b *BlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if b.PutError != nil {
		return b.PutError
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *BlobStore) Get(_ context.Context, key string) ([]byte, error) {
	if b.GetError != nil {
		return nil, b.GetError
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, identity.ErrNotFound)
	}
	return data, nil
}

func (b *BlobStore) DeleteObjects(_ context.Context, keys []string) error {
	if b.DeleteError != nil {
		return b.DeleteError
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.objects, k)
	}
	return nil
}

// Has reports whether key is stored.
func (b *BlobStore) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// Keys returns the stored keys in sorted order.
func (b *BlobStore) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
