package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// NewStore opens the history bucket, creating it when it does not exist.
// A zero ttl keeps records until deleted.
func NewStore(ctx context.Context, js jetstream.JetStream, name string, ttl time.Duration) (*History, error) {
	if name == "" {
		name = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, name, ttl)
	if err != nil {
		return nil, fmt.Errorf("open history bucket %s: %w", name, err)
	}
	return newHistory(jsBucket{kv: kv}), nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Definition validation history",
		History:     1,
		TTL:         ttl,
	})
}

// jsBucket adapts a JetStream KV bucket.
type jsBucket struct {
	kv jetstream.KeyValue
}

func (b jsBucket) get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return entry.Value(), nil
}

func (b jsBucket) put(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Put(ctx, key, value)
	return err
}

func (b jsBucket) keys(ctx context.Context) ([]string, error) {
	keys, err := b.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	return keys, err
}

func (b jsBucket) delete(ctx context.Context, key string) error {
	if err := b.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "key not found")
}

// NewMemoryStore returns a history kept in process memory, for runs
// without a NATS server.
func NewMemoryStore() *History {
	return newHistory(&memBucket{data: make(map[string][]byte)})
}

type memBucket struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (b *memBucket) get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (b *memBucket) put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = slices.Clone(value)
	return nil
}

func (b *memBucket) keys(context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.data)), nil
}

func (b *memBucket) delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}
