package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"crowdfund-sol/internal/types"

	"github.com/redis/go-redis/v9"
)

// RedisProgressStore 在 Redis hash 中记录每个账户的处理位置：
// key = {prefix}:progress:{account}，字段 slot / write_version
type RedisProgressStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

const (
	fieldSlot         = "slot"
	fieldWriteVersion = "write_version"
	defaultTTL        = 30 * 24 * time.Hour
	maxAdvanceRetries = 5
)

// NewRedisProgressStore 创建 Redis 判重管理器
func NewRedisProgressStore(rdb *redis.Client, prefix string) *RedisProgressStore {
	if prefix == "" {
		prefix = "crowdfund"
	}
	return &RedisProgressStore{rdb: rdb, prefix: prefix, ttl: defaultTTL}
}

func (r *RedisProgressStore) getKey(account types.Pubkey) string {
	return fmt.Sprintf("%s:progress:%s", r.prefix, account)
}

type hashGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func readPosition(ctx context.Context, c hashGetter, key string) (Position, bool, error) {
	vals, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return Position{}, false, fmt.Errorf("redis hgetall error: %w", err)
	}
	if len(vals) == 0 {
		return Position{}, false, nil
	}
	slot, err := strconv.ParseUint(vals[fieldSlot], 10, 64)
	if err != nil {
		return Position{}, false, fmt.Errorf("invalid slot %q in %s: %w", vals[fieldSlot], key, err)
	}
	wv, _ := strconv.ParseUint(vals[fieldWriteVersion], 10, 64)
	return Position{Slot: slot, WriteVersion: wv}, true, nil
}

func (r *RedisProgressStore) Last(ctx context.Context, account types.Pubkey) (Position, bool, error) {
	return readPosition(ctx, r.rdb, r.getKey(account))
}

// Advance 用 WATCH 乐观锁实现比较并更新，多实例并发写同一账户时也不会回退
func (r *RedisProgressStore) Advance(ctx context.Context, account types.Pubkey, pos Position) (bool, error) {
	key := r.getKey(account)
	advanced := false

	txf := func(tx *redis.Tx) error {
		last, ok, err := readPosition(ctx, tx, key)
		if err != nil {
			return err
		}
		if ok && !pos.After(last) {
			advanced = false
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldSlot, pos.Slot, fieldWriteVersion, pos.WriteVersion)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		advanced = err == nil
		return err
	}

	for i := 0; i < maxAdvanceRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("redis advance %s: %w", key, err)
		}
		return advanced, nil
	}
	return false, fmt.Errorf("redis advance %s: too many concurrent updates", key)
}
