package valkey

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/valkey-io/valkey-go"
)

type valkeyStore struct {
	client valkey.Client
	prefix string
}

// NewStore connects to a Valkey (or Redis) server. Keys are namespaced by prefix.
func NewStore(addr, password, prefix string) (*valkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", addr, err)
	}
	return &valkeyStore{client: client, prefix: prefix}, nil
}

func (s *valkeyStore) key(key string) string {
	return s.prefix + key
}

func (s *valkeyStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	cmd := s.client.B().Get().Key(s.key(key)).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		logrus.WithError(err).WithField("key", key).Error("Failed to load value from valkey")
		return nil, false, err
	}
	return data, true, nil
}

func (s *valkeyStore) Save(ctx context.Context, key string, data []byte) error {
	cmd := s.client.B().Set().Key(s.key(key)).Value(valkey.BinaryString(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to save value to valkey")
		return err
	}
	return nil
}

func (s *valkeyStore) Remove(ctx context.Context, key string) error {
	cmd := s.client.B().Del().Key(s.key(key)).Build()
	return s.client.Do(ctx, cmd).Error()
}

// Close closes the underlying client.
func (s *valkeyStore) Close() error {
	s.client.Close()
	return nil
}
