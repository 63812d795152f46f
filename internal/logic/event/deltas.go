package event

import (
	"context"
	"sync"

	"crowdfund-sol/internal/bank"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"
)

// FromResult 从 bank 的提交结果中提取众筹事件，只看归属 programID 的账户
func FromResult(programID types.Pubkey, res *bank.Result) []CampaignEvent {
	var events []CampaignEvent
	for _, d := range res.Deltas {
		if d.Post == nil || d.Post.Owner != programID {
			continue
		}

		var prev *Snapshot
		if d.Pre != nil && d.Pre.Owner == programID {
			snap := SnapshotOf(d.Pre.Lamports, d.Pre.Data)
			prev = &snap
		}
		cur := SnapshotOf(d.Post.Lamports, d.Post.Data)
		if ev, ok := Build(d.Key, res.Slot, res.Signature, prev, cur); ok {
			events = append(events, ev)
		}
	}
	return events
}

// CommitHook 返回一个 bank 提交回调，把事件交给 sink
func CommitHook(programID types.Pubkey, sink Sink) bank.CommitHook {
	return func(ctx context.Context, res *bank.Result) {
		events := FromResult(programID, res)
		if len(events) == 0 {
			return
		}
		if err := sink.Publish(ctx, events); err != nil {
			logger.Errorf("[Event:CommitHook] 发布众筹事件失败, sig=%s, err=%v", res.Signature, err)
		}
	}
}

// Collector 内存 sink，模拟器和测试使用
type Collector struct {
	mu     sync.Mutex
	events []CampaignEvent
}

func (c *Collector) Publish(_ context.Context, events []CampaignEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

// Events 返回已收集事件的副本
func (c *Collector) Events() []CampaignEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CampaignEvent, len(c.events))
	copy(out, c.events)
	return out
}

// LogSink 未配置 Kafka 时把事件写进日志
type LogSink struct{}

func (LogSink) Publish(_ context.Context, events []CampaignEvent) error {
	for _, e := range events {
		logger.Infof("[Event:Log] kind=%s, campaign=%s, slot=%d, sig=%s, delta=%d, total=%d, lamports=%d, name=%q",
			e.Kind, e.Campaign, e.Slot, e.Signature, e.Delta, e.AmountDonated, e.Lamports, e.Name)
	}
	return nil
}
