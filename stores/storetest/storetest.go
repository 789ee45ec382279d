// Package storetest holds the behaviour every core.Backend must share.
package storetest

import (
	"context"
	"testing"

	"chatdash/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises backend against the load/save/remove contract.
func Run(t *testing.T, backend core.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key reads as absent", func(t *testing.T) {
		data, ok, err := backend.Load(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, data)
	})

	t.Run("save then load", func(t *testing.T) {
		require.NoError(t, backend.Save(ctx, "chatrooms", []byte(`[{"id":"r1"}]`)))

		data, ok, err := backend.Load(ctx, "chatrooms")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `[{"id":"r1"}]`, string(data))
	})

	t.Run("save replaces the whole value", func(t *testing.T) {
		require.NoError(t, backend.Save(ctx, "users", []byte(`[{"a":1},{"b":2}]`)))
		require.NoError(t, backend.Save(ctx, "users", []byte(`[]`)))

		data, ok, err := backend.Load(ctx, "users")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `[]`, string(data))
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, backend.Save(ctx, "left", []byte(`"l"`)))
		require.NoError(t, backend.Save(ctx, "right", []byte(`"r"`)))

		data, _, err := backend.Load(ctx, "left")
		require.NoError(t, err)
		assert.Equal(t, `"l"`, string(data))
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, backend.Save(ctx, "currentUser", []byte(`{"mobileNumber":"9876543210"}`)))
		require.NoError(t, backend.Remove(ctx, "currentUser"))

		_, ok, err := backend.Load(ctx, "currentUser")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remove missing key is not an error", func(t *testing.T) {
		assert.NoError(t, backend.Remove(ctx, "never-saved"))
	})
}
