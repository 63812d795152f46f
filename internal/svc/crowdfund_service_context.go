package svc

import (
	"fmt"

	"crowdfund-sol/internal/bank"
	"crowdfund-sol/internal/config"
	"crowdfund-sol/internal/logic/event"
	"crowdfund-sol/internal/logic/program"
	"crowdfund-sol/internal/mq"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// CrowdfundServiceContext 本地 bank 及其依赖，供 simulate 使用
type CrowdfundServiceContext struct {
	Config    config.CrowdfundConfig
	ProgramID types.Pubkey
	Bank      *bank.Bank
	Events    *event.Collector
	Redis     *redis.Client
	Publisher *mq.Publisher
}

// NewCrowdfundServiceContext 按配置创建 bank，注册众筹程序并挂上事件回调
func NewCrowdfundServiceContext(c config.CrowdfundConfig) (*CrowdfundServiceContext, error) {
	programID, err := c.ProgramConf.ProgramPubkey()
	if err != nil {
		return nil, err
	}
	ctx := &CrowdfundServiceContext{
		Config:    c,
		ProgramID: programID,
		Events:    &event.Collector{},
	}

	// 1. 账户存储
	var db bank.AccountsDB
	switch c.RuntimeConf.Store {
	case "redis":
		rdb, err := NewRedisClient(c.RedisConf)
		if err != nil {
			return nil, err
		}
		ctx.Redis = rdb
		db = bank.NewRedisAccountsDB(rdb, c.RedisConf.KeyPrefix)
	case "", "memory":
		db = bank.NewMemoryAccountsDB()
	default:
		return nil, fmt.Errorf("unknown runtime.store %q", c.RuntimeConf.Store)
	}

	// 2. bank 与众筹程序
	ctx.Bank = bank.NewBank(db, bank.Options{
		Rent:                 c.ProgramConf.Rent.ToRent(),
		LamportsPerSignature: c.RuntimeConf.FeePerSignature(),
	})
	ctx.Bank.RegisterProgram(programID, program.Process)
	ctx.Bank.OnCommit(event.CommitHook(programID, ctx.Events))

	// 3. 可选的 Kafka 事件出口
	if c.KafkaProducerConf.Enabled() {
		publisher, err := NewPublisher(c.KafkaProducerConf)
		if err != nil {
			ctx.Close()
			return nil, err
		}
		ctx.Publisher = publisher
		ctx.Bank.OnCommit(event.CommitHook(programID, publisher))
	}

	logger.Infof("[Svc:Crowdfund] bank 初始化完成, program=%s, store=%s, fee=%d",
		programID, c.RuntimeConf.Store, c.RuntimeConf.FeePerSignature())
	return ctx, nil
}

func (ctx *CrowdfundServiceContext) Close() {
	if ctx.Publisher != nil {
		ctx.Publisher.Close()
	}
	if ctx.Redis != nil {
		_ = ctx.Redis.Close()
	}
}
