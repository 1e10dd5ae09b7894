package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLocalCache(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(10, "test:")
	defer c.Close()

	var _ Store = c

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "a", entry{Name: "a", Count: 3}, time.Minute))

		var got entry
		require.NoError(t, c.Get(ctx, "a", &got))
		assert.Equal(t, entry{Name: "a", Count: 3}, got)
	})

	t.Run("missing key", func(t *testing.T) {
		var got entry
		assert.ErrorIs(t, c.Get(ctx, "missing", &got), ErrNotFound)
	})

	t.Run("expired key", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "old", entry{Name: "old"}, -time.Second))

		var got entry
		assert.ErrorIs(t, c.Get(ctx, "old", &got), ErrNotFound)
	})

	t.Run("stored copy is isolated from caller", func(t *testing.T) {
		v := entry{Name: "b", Count: 1}
		require.NoError(t, c.Set(ctx, "b", v, time.Minute))
		v.Count = 99

		var got entry
		require.NoError(t, c.Get(ctx, "b", &got))
		assert.Equal(t, 1, got.Count)
	})
}
