package progress

import (
	"context"
	"testing"
	"time"

	"crowdfund-sol/internal/types"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_After(t *testing.T) {
	assert.True(t, Position{Slot: 2}.After(Position{Slot: 1, WriteVersion: 99}))
	assert.True(t, Position{Slot: 1, WriteVersion: 2}.After(Position{Slot: 1, WriteVersion: 1}))
	assert.False(t, Position{Slot: 1, WriteVersion: 1}.After(Position{Slot: 1, WriteVersion: 1}), "相同位置不算更新")
	assert.False(t, Position{Slot: 1}.After(Position{Slot: 2}))
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()
	account := types.Pubkey{0x77}

	_, ok, err := store.Last(ctx, account)
	require.NoError(t, err)
	assert.False(t, ok)

	advanced, err := store.Advance(ctx, account, Position{Slot: 10, WriteVersion: 3})
	require.NoError(t, err)
	assert.True(t, advanced)

	advanced, err = store.Advance(ctx, account, Position{Slot: 10, WriteVersion: 3})
	require.NoError(t, err)
	assert.False(t, advanced, "重复推送应被判重")

	advanced, err = store.Advance(ctx, account, Position{Slot: 9, WriteVersion: 100})
	require.NoError(t, err)
	assert.False(t, advanced, "旧 slot 不得覆盖新进度")

	advanced, err = store.Advance(ctx, account, Position{Slot: 11})
	require.NoError(t, err)
	assert.True(t, advanced)

	pos, ok, err := store.Last(ctx, account)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Position{Slot: 11}, pos)
}

func TestMemoryProgressStore(t *testing.T) {
	testStore(t, NewMemoryProgressStore())
}

func TestRedisProgressStore(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("本地 Redis 不可用，跳过: %v", err)
	}

	store := NewRedisProgressStore(rdb, "crowdfund-test-"+time.Now().Format("150405.000000"))
	testStore(t, store)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "grpc", SourceGrpc.String())
	assert.Equal(t, "rpc", SourceRpc.String())
	assert.Equal(t, "unknown", Source(9).String())
}
