package bank

import (
	"context"
	"sync"

	"crowdfund-sol/internal/types"
)

// AccountUpdate 一次提交中的单个账户写入，Account 为 nil 表示删除
type AccountUpdate struct {
	Key     types.Pubkey
	Account *Account
}

// AccountsDB 账户存储接口
type AccountsDB interface {
	// GetAccount 读取账户，不存在时返回 nil, nil
	GetAccount(ctx context.Context, key types.Pubkey) (*Account, error)

	// SetAccounts 原子地写入一批账户
	SetAccounts(ctx context.Context, updates []AccountUpdate) error
}

// MemoryAccountsDB 内存实现，用于模拟器和测试
type MemoryAccountsDB struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*Account
}

func NewMemoryAccountsDB() *MemoryAccountsDB {
	return &MemoryAccountsDB{
		accounts: make(map[types.Pubkey]*Account),
	}
}

func (db *MemoryAccountsDB) GetAccount(_ context.Context, key types.Pubkey) (*Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	acc, ok := db.accounts[key]
	if !ok {
		return nil, nil
	}
	return acc.Clone(), nil
}

func (db *MemoryAccountsDB) SetAccounts(_ context.Context, updates []AccountUpdate) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range updates {
		if u.Account == nil {
			delete(db.accounts, u.Key)
			continue
		}
		db.accounts[u.Key] = u.Account.Clone()
	}
	return nil
}

// Len 返回账户数量
func (db *MemoryAccountsDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.accounts)
}
