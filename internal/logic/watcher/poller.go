package watcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"crowdfund-sol/internal/logic/progress"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"

	rpc "github.com/blocto/solana-go-sdk/client"
)

// PollRPC 轮询需要的 RPC 方法，*rpc.Client 满足该接口
type PollRPC interface {
	GetSlot(ctx context.Context) (uint64, error)
	GetMultipleAccounts(ctx context.Context, addrs []string) ([]rpc.AccountInfo, error)
}

// Poller 在没有 Geyser gRPC 时按固定间隔用 JSON-RPC 拉取众筹账户
type Poller struct {
	client   PollRPC
	accounts []string
	keys     []types.Pubkey
	interval time.Duration
	timeout  time.Duration
	out      chan<- AccountUpdate
	ctx      context.Context
	cancel   func(err error)
	stopChan chan struct{}
}

func NewPoller(client PollRPC, keys []types.Pubkey, interval, timeout time.Duration, out chan<- AccountUpdate) *Poller {
	ctx, cancel := context.WithCancelCause(context.Background())
	accounts := make([]string, len(keys))
	for i, k := range keys {
		accounts[i] = k.String()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Poller{
		client:   client,
		accounts: accounts,
		keys:     keys,
		interval: interval,
		timeout:  timeout,
		out:      out,
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

func (p *Poller) Start() {
	if err := p.Poll(); err != nil {
		logger.Warnf("[Watcher:Poller] 首次拉取失败: %v", err)
	}
	p.scheduleNext()
	<-p.stopChan
}

func (p *Poller) scheduleNext() {
	time.AfterFunc(p.interval, func() {
		select {
		case <-p.ctx.Done():
			return
		default:
		}
		if err := p.Poll(); err != nil {
			logger.Warnf("[Watcher:Poller] 周期性拉取失败: %v", err)
		}
		p.scheduleNext()
	})
}

func (p *Poller) Stop() {
	p.cancel(errors.New("poller stop"))
	select {
	case <-p.stopChan:
	default:
		close(p.stopChan)
	}
}

// Poll 拉取一次全部账户并写入输出通道
func (p *Poller) Poll() (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Watcher:Poller] poll panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("poll panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	slot, err := p.client.GetSlot(ctx)
	if err != nil {
		return fmt.Errorf("GetSlot failed: %w", err)
	}
	infos, err := p.client.GetMultipleAccounts(ctx, p.accounts)
	if err != nil {
		return fmt.Errorf("GetMultipleAccounts failed: %w", err)
	}
	if len(infos) != len(p.accounts) {
		return fmt.Errorf("返回账户数与请求不一致: got=%d want=%d", len(infos), len(p.accounts))
	}

	for i, info := range infos {
		update := AccountUpdate{
			Pubkey:   p.keys[i],
			Owner:    types.Pubkey(info.Owner),
			Lamports: info.Lamports,
			Data:     info.Data,
			Position: progress.Position{Slot: slot},
			Source:   progress.SourceRpc,
		}
		select {
		case p.out <- update:
		case <-p.ctx.Done():
			return context.Cause(p.ctx)
		}
	}
	return nil
}
