package watcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"crowdfund-sol/internal/config"
	"crowdfund-sol/internal/logic/progress"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"

	"github.com/mr-tron/base58"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// AccountStream 通过 Geyser gRPC 订阅指定众筹账户的变化，断线自动重连
type AccountStream struct {
	mu                    sync.Mutex
	conn                  *grpc.ClientConn
	client                pb.GeyserClient
	stream                pb.Geyser_SubscribeClient
	stopped               bool
	reconnectAttempts     int
	reconnectInterval     time.Duration
	xToken                string
	streamPingIntervalSec int
	sendTimeoutSec        int
	idleTimeout           time.Duration // 超过该时间没有任何推送（含 pong）则重连
	accounts              []string
	commitment            pb.CommitmentLevel
	out                   chan<- AccountUpdate
	connCtx               context.Context
	connCancel            context.CancelFunc
	done                  chan struct{}
}

func NewAccountStream(grpcConf config.GrpcConfig, watch config.WatchConfig, out chan<- AccountUpdate) (*AccountStream, error) {
	if len(watch.Campaigns) == 0 {
		return nil, errors.New("no campaign accounts configured")
	}
	if _, err := watch.CampaignPubkeys(); err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(grpcConf.ConnectTimeoutSec)*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		grpcConf.Endpoint,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(grpcConf.MaxCallRecvMsgSize)),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(grpcConf.KeepalivePingIntervalSec) * time.Second,
			Timeout:             time.Duration(grpcConf.KeepalivePingTimeoutSec) * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &AccountStream{
		conn:                  conn,
		client:                pb.NewGeyserClient(conn),
		reconnectInterval:     time.Duration(grpcConf.ReconnectIntervalSec) * time.Second,
		xToken:                grpcConf.XToken,
		streamPingIntervalSec: grpcConf.StreamPingIntervalSec,
		sendTimeoutSec:        grpcConf.SendTimeoutSec,
		idleTimeout:           time.Duration(grpcConf.IdleTimeoutSec) * time.Second,
		accounts:              watch.Campaigns,
		commitment:            parseCommitment(watch.Commitment),
		out:                   out,
		done:                  make(chan struct{}),
	}, nil
}

// Start 建立订阅并阻塞直到 Stop
func (m *AccountStream) Start() {
	m.mustConnect()
	<-m.done
}

func (m *AccountStream) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
	}
	close(m.done)
}

func parseCommitment(s string) pb.CommitmentLevel {
	switch strings.ToLower(s) {
	case "processed":
		return pb.CommitmentLevel_PROCESSED
	case "finalized":
		return pb.CommitmentLevel_FINALIZED
	default:
		return pb.CommitmentLevel_CONFIRMED
	}
}

// buildSubscribeRequest 只订阅显式配置的账户地址
func buildSubscribeRequest(accounts []string, commitment pb.CommitmentLevel) *pb.SubscribeRequest {
	return &pb.SubscribeRequest{
		Accounts: map[string]*pb.SubscribeRequestFilterAccounts{
			"campaigns": {Account: accounts},
		},
		Commitment: &commitment,
	}
}

// convertAccountUpdate 把 Geyser 推送转成 AccountUpdate
func convertAccountUpdate(u *pb.SubscribeUpdateAccount) (AccountUpdate, error) {
	info := u.GetAccount()
	if info == nil {
		return AccountUpdate{}, errors.New("account update without account info")
	}
	key, err := types.TryPubkeyFromBytes(info.GetPubkey())
	if err != nil {
		return AccountUpdate{}, fmt.Errorf("pubkey: %w", err)
	}
	owner, err := types.TryPubkeyFromBytes(info.GetOwner())
	if err != nil {
		return AccountUpdate{}, fmt.Errorf("owner: %w", err)
	}

	update := AccountUpdate{
		Pubkey:   key,
		Owner:    owner,
		Lamports: info.GetLamports(),
		Data:     info.GetData(),
		Position: progress.Position{Slot: u.GetSlot(), WriteVersion: info.GetWriteVersion()},
		Source:   progress.SourceGrpc,
	}
	if sig := info.GetTxnSignature(); len(sig) > 0 {
		update.Signature = base58.Encode(sig)
	}
	return update, nil
}

// 内部循环直到连接成功
func (m *AccountStream) mustConnect() {
	for {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if m.reconnectAttempts > 0 {
			if m.reconnectAttempts > 3 {
				time.Sleep(m.reconnectInterval * 2)
			} else {
				time.Sleep(m.reconnectInterval)
			}
		}
		logger.Infof("[Watcher:Stream] connecting, attempt %d", m.reconnectAttempts+1)
		m.reconnectAttempts++
		err := m.connect()
		if err == nil {
			return
		}
		logger.Warnf("[Watcher:Stream] connect failed: %v, will retry", err)
	}
}

// connect 只尝试一次连接
func (m *AccountStream) connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return errors.New("stream is stopped")
	}

	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.connCtx, m.connCancel = context.WithCancel(context.Background())

	metaCtx := metadata.NewOutgoingContext(
		m.connCtx,
		metadata.New(map[string]string{"x-token": m.xToken}),
	)
	stream, err := m.client.Subscribe(metaCtx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	req := buildSubscribeRequest(m.accounts, m.commitment)
	if err := sendWithTimeout(m.connCtx, stream.Send, req, time.Duration(m.sendTimeoutSec)*time.Second); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}

	m.stream = stream
	m.reconnectAttempts = 0
	logger.Infof("[Watcher:Stream] subscribed to %d campaign accounts", len(m.accounts))

	go m.pingLoop(m.connCtx, stream)
	go m.recvLoop(m.connCtx, stream)
	return nil
}

func (m *AccountStream) recvLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		update, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Warnf("[Watcher:Stream] stream closed by server (EOF), will reconnect")
				m.reconnect()
				return
			}
			logger.Warnf("[Watcher:Stream] stream error: %v", err)
			if m.reconnectIfIdle(last) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		last = time.Now()

		u, ok := update.GetUpdateOneof().(*pb.SubscribeUpdate_Account)
		if !ok {
			continue // ping / pong 只用于保活
		}
		au, err := convertAccountUpdate(u.Account)
		if err != nil {
			logger.Warnf("[Watcher:Stream] 无法解析账户推送: %v", err)
			continue
		}
		select {
		case m.out <- au:
		case <-ctx.Done():
			return
		}
	}
}

// 带超时的 Send
func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}

// 心跳检测
func (m *AccountStream) pingLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	ticker := time.NewTicker(time.Duration(m.streamPingIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingReq := &pb.SubscribeRequest{
				Ping: &pb.SubscribeRequestPing{Id: 1},
			}
			if err := sendWithTimeout(ctx, stream.Send, pingReq, time.Duration(m.sendTimeoutSec)*time.Second); err != nil {
				logger.Warnf("[Watcher:Stream] ping failed: %v", err)
			}
		}
	}
}

func (m *AccountStream) reconnectIfIdle(last time.Time) bool {
	if m.idleTimeout > 0 && time.Since(last) > m.idleTimeout {
		logger.Warnf("[Watcher:Stream] %v 未收到任何推送，触发重连", m.idleTimeout)
		m.reconnect()
		return true
	}
	return false
}

func (m *AccountStream) reconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.mu.Unlock()

	go m.mustConnect()
}
