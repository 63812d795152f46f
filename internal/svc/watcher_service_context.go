package svc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crowdfund-sol/internal/cache"
	"crowdfund-sol/internal/config"
	"crowdfund-sol/internal/logic/event"
	"crowdfund-sol/internal/logic/progress"
	"crowdfund-sol/internal/mq"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// WatcherServiceContext 包含 watcher 服务资源
type WatcherServiceContext struct {
	Config    config.WatcherConfig
	ProgramID types.Pubkey
	Campaigns []types.Pubkey
	Redis     *redis.Client
	Publisher *mq.Publisher
	Sink      event.Sink
	Progress  progress.Store
	Cache     *cache.CampaignCache
}

// NewWatcherServiceContext 创建 watcher 服务上下文
func NewWatcherServiceContext(c config.WatcherConfig) (*WatcherServiceContext, error) {
	// 1. 解析程序 ID 与跟踪地址
	programID, err := c.ProgramConf.ProgramPubkey()
	if err != nil {
		return nil, err
	}
	campaigns, err := c.WatchConf.CampaignPubkeys()
	if err != nil {
		return nil, fmt.Errorf("invalid watch.campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		return nil, fmt.Errorf("watch.campaigns is empty")
	}

	ctx := &WatcherServiceContext{
		Config:    c,
		ProgramID: programID,
		Campaigns: campaigns,
		Cache:     cache.NewCampaignCache(),
	}

	// 2. 初始化 Redis（用于判重进度），未配置时使用内存实现
	if strings.TrimSpace(c.RedisConf.Addr) != "" {
		rdb, err := NewRedisClient(c.RedisConf)
		if err != nil {
			return nil, err
		}
		ctx.Redis = rdb
		ctx.Progress = progress.NewRedisProgressStore(rdb, c.RedisConf.KeyPrefix)
	} else {
		logger.Warnf("[Svc:Watcher] 未配置 Redis，进度只保存在内存中")
		ctx.Progress = progress.NewMemoryProgressStore()
	}

	// 3. 初始化事件出口：Kafka 或日志
	if c.KafkaProducerConf.Enabled() {
		publisher, err := NewPublisher(c.KafkaProducerConf)
		if err != nil {
			ctx.Close()
			return nil, err
		}
		ctx.Publisher = publisher
		ctx.Sink = publisher
	} else {
		logger.Warnf("[Svc:Watcher] 未配置 Kafka，众筹事件只写日志")
		ctx.Sink = event.LogSink{}
	}

	logger.Infof("[Svc:Watcher] 服务上下文初始化完成, program=%s, campaigns=%d", programID, len(campaigns))
	return ctx, nil
}

// NewRedisClient 创建 Redis 客户端并检查连通性
func NewRedisClient(c config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.Addr, err)
	}
	return rdb, nil
}

// NewPublisher 确保 topic 存在并创建 Kafka 事件发布器
func NewPublisher(c config.KafkaProducerConfig) (*mq.Publisher, error) {
	if err := mq.EnsureTopic(c); err != nil {
		return nil, fmt.Errorf("ensure topic %s: %w", c.Topic, err)
	}
	producer, err := mq.NewKafkaProducer(c)
	if err != nil {
		logger.Errorf("[Svc:Kafka] producer 初始化失败: %v", err)
		return nil, err
	}
	return mq.NewPublisher(producer, c), nil
}

// Close 关闭服务上下文中的资源
func (ctx *WatcherServiceContext) Close() {
	if ctx.Publisher != nil {
		ctx.Publisher.Close()
	}
	if ctx.Redis != nil {
		_ = ctx.Redis.Close()
	}
}
