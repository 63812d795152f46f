package cache

import (
	"sort"
	"sync"

	"crowdfund-sol/internal/logic/event"
	"crowdfund-sol/internal/types"
)

// CampaignCache 保存每个众筹账户最近一次处理后的快照，用于和新推送比较得出事件
type CampaignCache struct {
	mu        sync.RWMutex
	snapshots map[types.Pubkey]event.Snapshot
}

func NewCampaignCache() *CampaignCache {
	return &CampaignCache{
		snapshots: make(map[types.Pubkey]event.Snapshot),
	}
}

// Get 返回快照副本，未缓存时返回 nil
func (c *CampaignCache) Get(account types.Pubkey) *event.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.snapshots[account]
	if !ok {
		return nil
	}
	return cloneSnapshot(snap)
}

func (c *CampaignCache) Put(account types.Pubkey, snap event.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[account] = *cloneSnapshot(snap)
}

func (c *CampaignCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}

// Accounts 返回已缓存的账户地址（按字节序排序）
func (c *CampaignCache) Accounts() []types.Pubkey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Pubkey, 0, len(c.snapshots))
	for k := range c.snapshots {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}

func cloneSnapshot(snap event.Snapshot) *event.Snapshot {
	out := event.Snapshot{Lamports: snap.Lamports}
	if snap.Campaign != nil {
		c := *snap.Campaign
		out.Campaign = &c
	}
	return &out
}
