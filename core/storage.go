package core

import "context"

type (
	// Record is a single schema-less entity stored inside a collection.
	Record map[string]any

	// Backend is the device-local key/value storage every collection is written to.
	// Values are opaque bytes; the record layer stores one JSON array per key.
	Backend interface {
		// Load returns the value stored under key. ok is false when the key has never
		// been written, which is different from a key holding an empty collection.
		Load(ctx context.Context, key string) (data []byte, ok bool, err error)

		// Save replaces the value stored under key.
		Save(ctx context.Context, key string, data []byte) error

		// Remove deletes key. Removing a missing key is not an error.
		Remove(ctx context.Context, key string) error
	}
)
