package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepend(t *testing.T) {
	list := []string{"soup", "cake", "pasta"}

	assert.Equal(t, []string{"cake", "soup", "pasta"}, Prepend(list, "cake", 10))
	assert.Equal(t, []string{"bread", "soup"}, Prepend(list, "bread", 2))
	assert.Equal(t, []string{"soup", "cake", "pasta"}, list, "input must not be modified")
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, RedisConfig{Prefix: "recipehub"})
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis":  func(t *testing.T) Store { return newRedisStore(t) },
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := build(t)

			list, err := s.List(ctx, RecentKey)
			require.NoError(t, err)
			assert.Empty(t, list)

			for _, q := range []string{"soup", "cake", "soup", "pasta"} {
				require.NoError(t, s.Push(ctx, RecentKey, q, 3))
			}

			list, err = s.List(ctx, RecentKey)
			require.NoError(t, err)
			assert.Equal(t, []string{"pasta", "soup", "cake"}, list)

			for i := 0; i < 5; i++ {
				require.NoError(t, s.Push(ctx, RecentKey, fmt.Sprintf("q%d", i), 3))
			}
			list, err = s.List(ctx, RecentKey)
			require.NoError(t, err)
			assert.Equal(t, []string{"q4", "q3", "q2"}, list)

			other, err := s.List(ctx, HistoryKey)
			require.NoError(t, err)
			assert.Empty(t, other, "keys are independent")

			require.NoError(t, s.Clear(ctx, RecentKey))
			list, err = s.List(ctx, RecentKey)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestRedisStore_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, RedisConfig{Prefix: "recipehub"})
	require.NoError(t, s.Push(context.Background(), RecentKey, "soup", RecentLimit))

	values, err := mr.List("recipehub:" + RecentKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"soup"}, values)
	require.NoError(t, s.Ping(context.Background()))
}

func TestNew_FallsBackToMemory(t *testing.T) {
	_, ok := New(Config{Backend: "redis"}, nil).(*MemoryStore)
	assert.True(t, ok)
}
