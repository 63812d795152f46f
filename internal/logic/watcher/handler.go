package watcher

import (
	"context"
	"fmt"

	"crowdfund-sol/internal/cache"
	"crowdfund-sol/internal/logic/event"
	"crowdfund-sol/internal/logic/progress"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"
)

// AccountUpdate 一次账户状态推送（gRPC 或 RPC 轮询）
type AccountUpdate struct {
	Pubkey    types.Pubkey
	Owner     types.Pubkey
	Lamports  uint64
	Data      []byte
	Position  progress.Position
	Signature string // 引起变化的交易签名，轮询得到的更新为空
	Source    progress.Source
}

// Handler 把账户更新转成众筹事件：判重 -> 与缓存快照比较 -> 发布 -> 推进进度
type Handler struct {
	programID types.Pubkey
	store     progress.Store
	cache     *cache.CampaignCache
	sink      event.Sink
}

func NewHandler(programID types.Pubkey, store progress.Store, c *cache.CampaignCache, sink event.Sink) *Handler {
	return &Handler{
		programID: programID,
		store:     store,
		cache:     c,
		sink:      sink,
	}
}

// Handle 处理一条更新，返回发布的事件（没有事件时为 nil）。
// 发布失败时不推进进度，同一更新再次到达时会重新处理。
func (h *Handler) Handle(ctx context.Context, u AccountUpdate) (*event.CampaignEvent, error) {
	// 1. 判重：只处理比已记录位置更新的推送
	last, seen, err := h.store.Last(ctx, u.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", u.Pubkey, err)
	}
	if seen && !u.Position.After(last) {
		logger.Debugf("[Watcher:Handle] 跳过旧推送, account=%s, slot=%d, wv=%d, source=%s",
			u.Pubkey, u.Position.Slot, u.Position.WriteVersion, u.Source)
		return nil, nil
	}

	// 2. 解析当前快照，非本程序所有的账户视为不存在
	cur := event.Snapshot{Lamports: u.Lamports}
	if u.Owner == h.programID {
		cur = event.SnapshotOf(u.Lamports, u.Data)
	}

	// 3. 和上一次快照比较；重启后缓存为空但有进度记录时，只回填缓存不发事件
	prev := h.cache.Get(u.Pubkey)
	var published *event.CampaignEvent
	if prev != nil || !seen {
		if ev, ok := event.Build(u.Pubkey, u.Position.Slot, u.Signature, prev, cur); ok {
			if err := h.sink.Publish(ctx, []event.CampaignEvent{ev}); err != nil {
				return nil, fmt.Errorf("publish %s event for %s: %w", ev.Kind, u.Pubkey, err)
			}
			published = &ev
			logger.Infof("[Watcher:Handle] 众筹事件, kind=%s, account=%s, slot=%d, delta=%d, total=%d",
				ev.Kind, ev.Campaign, ev.Slot, ev.Delta, ev.AmountDonated)
		}
	}

	// 4. 推进进度并更新缓存
	if _, err := h.store.Advance(ctx, u.Pubkey, u.Position); err != nil {
		return published, fmt.Errorf("advance progress %s: %w", u.Pubkey, err)
	}
	h.cache.Put(u.Pubkey, cur)
	return published, nil
}
