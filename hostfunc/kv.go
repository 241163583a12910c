package hostfunc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/btree"
)

const (
	DefaultMaxKeySize   = 256
	DefaultMaxValueSize = 64 * 1024
	DefaultMaxEntries   = 1000
)

type kvConfig struct {
	maxKeySize   int
	maxValueSize int
	maxEntries   int
}

// KVOption configures a KVStore. A limit of zero disables the check.
type KVOption func(*kvConfig)

func WithMaxKeySize(n int) KVOption {
	return func(c *kvConfig) { c.maxKeySize = n }
}

func WithMaxValueSize(n int) KVOption {
	return func(c *kvConfig) { c.maxValueSize = n }
}

func WithMaxEntries(n int) KVOption {
	return func(c *kvConfig) { c.maxEntries = n }
}

// kvBackend stores encoded values. Callers serialize access through
// KVStore.mu.
type kvBackend interface {
	get(key string) ([]byte, bool, error)
	set(key string, value []byte) error
	delete(key string) error
	keys(prefix string) ([]string, error)
	len() int
	close() error
}

// KVStore is a key-value store for sandboxed code. Values are arbitrary
// JSON; keys are listed in sorted order.
type KVStore struct {
	cfg     kvConfig
	backend kvBackend
	mu      sync.Mutex
}

// NewKVStore returns an in-memory store.
func NewKVStore(opts ...KVOption) *KVStore {
	return newKVStore(&memBackend{}, opts)
}

func newKVStore(b kvBackend, opts []KVOption) *KVStore {
	cfg := kvConfig{
		maxKeySize:   DefaultMaxKeySize,
		maxValueSize: DefaultMaxValueSize,
		maxEntries:   DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &KVStore{cfg: cfg, backend: b}
}

func (s *KVStore) Get(ctx context.Context, req KVGetRequest) (any, error) {
	if req.Key == "" {
		return nil, errors.New("key required")
	}

	s.mu.Lock()
	raw, ok, err := s.backend.get(req.Key)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}
	if !ok {
		return req.Default, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("kv get: corrupt value for %q: %w", req.Key, err)
	}
	return v, nil
}

func (s *KVStore) Set(ctx context.Context, req KVSetRequest) (any, error) {
	if req.Key == "" {
		return nil, errors.New("key required")
	}
	if s.cfg.maxKeySize > 0 && len(req.Key) > s.cfg.maxKeySize {
		return nil, fmt.Errorf("key exceeds max size of %d bytes", s.cfg.maxKeySize)
	}
	raw, err := json.Marshal(req.Value)
	if err != nil {
		return nil, fmt.Errorf("value is not serializable: %w", err)
	}
	if s.cfg.maxValueSize > 0 && len(raw) > s.cfg.maxValueSize {
		return nil, fmt.Errorf("value exceeds max size of %d bytes", s.cfg.maxValueSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.maxEntries > 0 {
		_, exists, err := s.backend.get(req.Key)
		if err != nil {
			return nil, fmt.Errorf("kv set: %w", err)
		}
		if !exists && s.backend.len() >= s.cfg.maxEntries {
			return nil, fmt.Errorf("kv store full: max %d entries", s.cfg.maxEntries)
		}
	}
	if err := s.backend.set(req.Key, raw); err != nil {
		return nil, fmt.Errorf("kv set: %w", err)
	}
	return "ok", nil
}

func (s *KVStore) Delete(ctx context.Context, req KVDeleteRequest) (any, error) {
	if req.Key == "" {
		return nil, errors.New("key required")
	}

	s.mu.Lock()
	err := s.backend.delete(req.Key)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("kv delete: %w", err)
	}
	return "ok", nil
}

func (s *KVStore) Keys(ctx context.Context, req KVKeysRequest) (any, error) {
	s.mu.Lock()
	keys, err := s.backend.keys(req.Prefix)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("kv keys: %w", err)
	}
	return keys, nil
}

// Len returns the number of stored entries.
func (s *KVStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.len()
}

// Close releases the backing storage.
func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.close()
}

type memBackend struct {
	data btree.Map[string, []byte]
}

func (m *memBackend) get(key string) ([]byte, bool, error) {
	v, ok := m.data.Get(key)
	return v, ok, nil
}

func (m *memBackend) set(key string, value []byte) error {
	m.data.Set(key, value)
	return nil
}

func (m *memBackend) delete(key string) error {
	m.data.Delete(key)
	return nil
}

func (m *memBackend) keys(prefix string) ([]string, error) {
	keys := make([]string, 0)
	m.data.Ascend(prefix, func(key string, _ []byte) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})
	return keys, nil
}

func (m *memBackend) len() int { return m.data.Len() }

func (m *memBackend) close() error { return nil }
