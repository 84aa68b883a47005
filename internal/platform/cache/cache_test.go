package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, "assettrack", time.Minute), mr
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "po", "details", "7")
	require.NoError(t, err)
	assert.Equal(t, "assettrack:po:details:7:v1", key)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return record{ID: 7, Name: "PO-7"}, nil
	}

	var first, second record
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(key))
}

func TestBumpOrphansOldKeys(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.BuildKey(ctx, "par", "details", "3")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx, "par"))
	after, err := c.BuildKey(ctx, "par", "details", "3")
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
	assert.Equal(t, "assettrack:par:details:3:v2", after)

	other, err := c.BuildKey(ctx, "po", "details", "3")
	require.NoError(t, err)
	assert.Equal(t, "assettrack:po:details:3:v1", other)
}

func TestFetchJSONDoesNotCacheErrors(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key, err := c.BuildKey(ctx, "po", "details", "404")
	require.NoError(t, err)

	boom := errors.New("not found")
	var dest record
	err = c.FetchJSON(ctx, key, &dest, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(key))
}

func TestNilClientPassesThrough(t *testing.T) {
	c := NewCache(nil, "assettrack", time.Minute)
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "po", "details", "1")
	require.NoError(t, err)
	assert.Equal(t, "assettrack:po:details:1", key)
	require.NoError(t, c.Bump(ctx, "po"))

	var dest record
	require.NoError(t, c.FetchJSON(ctx, key, &dest, func(context.Context) (any, error) {
		return record{ID: 1, Name: "x"}, nil
	}))
	assert.Equal(t, int64(1), dest.ID)
}

func TestNewPingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := New(context.Background(), addr)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = New(context.Background(), addr)
	require.ErrorContains(t, err, "platform/cache: ping")
}
