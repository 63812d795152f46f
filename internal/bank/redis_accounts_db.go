package bank

import (
	"context"
	"errors"
	"fmt"

	"crowdfund-sol/internal/types"

	"github.com/near/borsh-go"
	"github.com/redis/go-redis/v9"
)

// RedisAccountsDB 把账户以 borsh 编码存进 Redis，key 为 {prefix}:account:{base58}
type RedisAccountsDB struct {
	client *redis.Client
	prefix string
}

func NewRedisAccountsDB(client *redis.Client, prefix string) *RedisAccountsDB {
	if prefix == "" {
		prefix = "crowdfund"
	}
	return &RedisAccountsDB{client: client, prefix: prefix}
}

func (db *RedisAccountsDB) key(k types.Pubkey) string {
	return fmt.Sprintf("%s:account:%s", db.prefix, k.String())
}

func (db *RedisAccountsDB) GetAccount(ctx context.Context, key types.Pubkey) (*Account, error) {
	raw, err := db.client.Get(ctx, db.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get account %s: %w", key, err)
	}

	var acc Account
	if err := borsh.Deserialize(&acc, raw); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", key, err)
	}
	return &acc, nil
}

// SetAccounts 在 MULTI/EXEC 事务中写入整批账户
func (db *RedisAccountsDB) SetAccounts(ctx context.Context, updates []AccountUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	encoded := make([][]byte, len(updates))
	for i, u := range updates {
		if u.Account == nil {
			continue
		}
		raw, err := borsh.Serialize(*u.Account)
		if err != nil {
			return fmt.Errorf("encode account %s: %w", u.Key, err)
		}
		encoded[i] = raw
	}

	_, err := db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, u := range updates {
			if u.Account == nil {
				pipe.Del(ctx, db.key(u.Key))
				continue
			}
			pipe.Set(ctx, db.key(u.Key), encoded[i], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis commit %d accounts: %w", len(updates), err)
	}
	return nil
}
