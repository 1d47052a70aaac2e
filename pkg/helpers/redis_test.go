package helpers

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	_, err := LoadSession(ctx, rdb, "u1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, SaveSession(ctx, rdb, "u1", map[string]any{"sid": "a", "email": "x@y.z"}, time.Hour))
	require.NoError(t, SaveSession(ctx, rdb, "u1", map[string]any{"sid": "b"}, time.Hour))

	data, err := LoadSession(ctx, rdb, "u1")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"sid": "b"}, data, "save replaces the previous hash")
	require.Equal(t, time.Hour, m.TTL(SessionKey("u1")))

	require.NoError(t, DeleteSession(ctx, rdb, "u1"))
	_, err = LoadSession(ctx, rdb, "u1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
