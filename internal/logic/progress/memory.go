package progress

import (
	"context"
	"sync"

	"crowdfund-sol/internal/types"
)

// MemoryProgressStore 进程内实现，未配置 Redis 时使用（重启后从头开始）
type MemoryProgressStore struct {
	mu        sync.Mutex
	positions map[types.Pubkey]Position
}

func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{positions: make(map[types.Pubkey]Position)}
}

func (m *MemoryProgressStore) Last(_ context.Context, account types.Pubkey) (Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[account]
	return pos, ok, nil
}

func (m *MemoryProgressStore) Advance(_ context.Context, account types.Pubkey, pos Position) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.positions[account]; ok && !pos.After(last) {
		return false, nil
	}
	m.positions[account] = pos
	return true, nil
}
