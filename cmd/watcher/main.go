package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	rpc "github.com/blocto/solana-go-sdk/client"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"

	"crowdfund-sol/internal/config"
	"crowdfund-sol/internal/logic/watcher"
	"crowdfund-sol/internal/svc"
	"crowdfund-sol/pkg/logger"
)

var configFile = flag.String("f", "etc/watcher.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	var c config.WatcherConfig
	config.MustLoad(*configFile, &c)

	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	serviceContext, err := svc.NewWatcherServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	updates := make(chan watcher.AccountUpdate, 200)
	sg := zerosvc.NewServiceGroup()

	// 优先使用 Geyser gRPC 订阅，未配置时退化为 RPC 轮询
	if c.Grpc.Endpoint != "" {
		stream, err := watcher.NewAccountStream(c.Grpc, c.WatchConf, updates)
		if err != nil {
			panic(err)
		}
		sg.Add(stream)
		logx.Infof("Watching %d campaigns via grpc %s", len(serviceContext.Campaigns), c.Grpc.Endpoint)
	} else {
		if c.RpcConf.Endpoint == "" {
			logx.Error("neither grpc.endpoint nor rpc.endpoint is configured")
			os.Exit(1)
		}
		poller := watcher.NewPoller(
			rpc.NewClient(c.RpcConf.Endpoint),
			serviceContext.Campaigns,
			time.Duration(c.RpcConf.PollIntervalSec)*time.Second,
			time.Duration(c.RpcConf.TimeoutSec)*time.Second,
			updates,
		)
		sg.Add(poller)
		logx.Infof("Watching %d campaigns via rpc polling %s", len(serviceContext.Campaigns), c.RpcConf.Endpoint)
	}

	handler := watcher.NewHandler(serviceContext.ProgramID, serviceContext.Progress, serviceContext.Cache, serviceContext.Sink)
	sg.Add(watcher.NewWatcher(handler, updates))

	// 启动服务
	go sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}
