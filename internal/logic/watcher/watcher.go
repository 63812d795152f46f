package watcher

import (
	"context"
	"runtime/debug"
	"sync"

	"crowdfund-sol/pkg/logger"
)

// Watcher 消费账户更新通道，实现 go-zero service.Service
type Watcher struct {
	updates <-chan AccountUpdate
	handler *Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatcher(handler *Handler, updates <-chan AccountUpdate) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		updates: updates,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 阻塞直到 Stop 被调用或通道关闭
func (w *Watcher) Start() {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case u, ok := <-w.updates:
			if !ok {
				logger.Infof("[Watcher:Start] 更新通道已关闭，退出")
				return
			}
			w.handleSafe(u)
		}
	}
}

func (w *Watcher) handleSafe(u AccountUpdate) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Watcher:handle] panic: %v, account=%s\n%s", r, u.Pubkey, debug.Stack())
		}
	}()
	if _, err := w.handler.Handle(w.ctx, u); err != nil {
		logger.Errorf("[Watcher:handle] 处理失败, account=%s, slot=%d, err=%v", u.Pubkey, u.Position.Slot, err)
	}
}

func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
}
