package memory

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// memStore keeps every collection in process memory. It is the default backend and
// the substitute used by tests.
type memStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

// Load returns a copy of the value stored under key.
func (s *memStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.values[key]
	if !ok {
		logrus.WithField("key", key).Debug("Key not present in memory store")
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

// Save stores a copy of data under key.
func (s *memStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	val := make([]byte, len(data))
	copy(val, data)
	s.values[key] = val
	logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(data),
	}).Debug("Value saved in memory store")
	return nil
}

// Remove deletes key.
func (s *memStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
