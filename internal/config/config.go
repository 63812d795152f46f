package config

import (
	"fmt"
	"strings"

	"crowdfund-sol/internal/consts"
	"crowdfund-sol/internal/sysvar"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"
)

type LogConfig struct {
	Format   string `json:"format,default=console"` // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional"`       // 日志目录（可为相对路径或绝对路径），为空只输出 stdout
	Level    string `json:"level,default=info"`     // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional"`      // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// RentConfig 租金参数，未配置时使用主网默认值
type RentConfig struct {
	LamportsPerByteYear uint64  `json:"lamports_per_byte_year,optional"`
	ExemptionThreshold  float64 `json:"exemption_threshold,optional"`
	BurnPercent         uint8   `json:"burn_percent,optional"`
}

func (c *RentConfig) ToRent() sysvar.Rent {
	rent := sysvar.DefaultRent()
	if c.LamportsPerByteYear > 0 {
		rent.LamportsPerByteYear = c.LamportsPerByteYear
	}
	if c.ExemptionThreshold > 0 {
		rent.ExemptionThreshold = c.ExemptionThreshold
	}
	if c.BurnPercent > 0 {
		rent.BurnPercent = c.BurnPercent
	}
	return rent
}

// ProgramConfig 众筹程序身份与租金
type ProgramConfig struct {
	ProgramID string     `json:"program_id,optional" env:"CROWDFUND_PROGRAM_ID"` // base58 程序地址
	Rent      RentConfig `json:"rent,optional"`
}

// ProgramPubkey 解析程序地址，未配置时使用默认地址
func (c *ProgramConfig) ProgramPubkey() (types.Pubkey, error) {
	if strings.TrimSpace(c.ProgramID) == "" {
		return consts.DefaultCrowdfundProgram, nil
	}
	p, err := types.TryPubkeyFromBase58(strings.TrimSpace(c.ProgramID))
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("invalid program_id: %w", err)
	}
	return p, nil
}

// RuntimeConfig 本地 bank 配置
type RuntimeConfig struct {
	LamportsPerSignature uint64 `json:"lamports_per_signature,optional"` // 每个签名的手续费
	Store                string `json:"store,default=memory,options=memory|redis"`
}

func (c *RuntimeConfig) FeePerSignature() uint64 {
	if c.LamportsPerSignature == 0 {
		return consts.DefaultLamportsPerSignature
	}
	return c.LamportsPerSignature
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr      string `json:"addr,optional" env:"CROWDFUND_REDIS_ADDR"` // 例如 127.0.0.1:6379
	Password  string `json:"password,optional" env:"CROWDFUND_REDIS_PASSWORD"`
	DB        int    `json:"db,optional"`
	KeyPrefix string `json:"key_prefix,default=crowdfund"`
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Brokers    string `json:"brokers,optional" env:"CROWDFUND_KAFKA_BROKERS"` // Kafka broker 地址，多个用英文逗号分隔
	BatchSize  int    `json:"batch_size,optional"`                            // 批处理大小（单位字节）
	LingerMs   int    `json:"linger_ms,optional"`                             // 批处理最大延迟（毫秒）
	Topic      string `json:"topic,default=crowdfund-campaign-events"`        // 众筹事件 topic
	Partitions int    `json:"partitions,default=4"`                           // topic 分区数
	SendTimeMs int    `json:"send_timeout_ms,default=3000"`                   // 单条消息等待 ack 的超时
}

// Enabled 未配置 broker 时不发送事件
func (c *KafkaProducerConfig) Enabled() bool {
	return strings.TrimSpace(c.Brokers) != ""
}

// RpcConfig Solana JSON-RPC 配置
type RpcConfig struct {
	Endpoint        string `json:"endpoint,optional" env:"CROWDFUND_RPC_ENDPOINT"`
	PollIntervalSec int    `json:"poll_interval_sec,default=10"` // 轮询间隔（秒），仅在未配置 gRPC 时生效
	TimeoutSec      int    `json:"timeout_sec,default=5"`
}

// GrpcConfig Geyser gRPC 客户端连接相关配置
type GrpcConfig struct {
	Endpoint string `json:"endpoint,optional" env:"CROWDFUND_GRPC_ENDPOINT"` // gRPC 服务端地址
	XToken   string `json:"x_token,optional" env:"CROWDFUND_GRPC_X_TOKEN"`   // x-token 认证

	// 应用级逻辑心跳（ping）配置
	StreamPingIntervalSec int `json:"stream_ping_interval_sec,default=10"`

	// gRPC Keepalive 底层连接检测配置
	KeepalivePingIntervalSec int `json:"keepalive_ping_interval_sec,default=10"`
	KeepalivePingTimeoutSec  int `json:"keepalive_ping_timeout_sec,default=5"`

	// 消息体大小限制
	MaxCallRecvMsgSize int `json:"max_call_recv_msg_size,default=67108864"`

	// 超时与重连策略
	ReconnectIntervalSec int `json:"reconnect_interval_sec,default=3"`
	ConnectTimeoutSec    int `json:"connect_timeout_sec,default=10"`
	SendTimeoutSec       int `json:"send_timeout_sec,default=5"`
	IdleTimeoutSec       int `json:"idle_timeout_sec,default=120"` // 长时间无任何推送时触发重连
}

// WatchConfig 需要跟踪的众筹账户（只跟踪显式配置的地址）
type WatchConfig struct {
	Campaigns  []string `json:"campaigns"`
	Commitment string   `json:"commitment,default=confirmed,options=processed|confirmed|finalized"`
}

// CampaignPubkeys 解析配置的众筹账户地址
func (c *WatchConfig) CampaignPubkeys() ([]types.Pubkey, error) {
	return types.PubkeysFromBase58(c.Campaigns)
}

// CrowdfundConfig 是命令行工具（simulate / inspect）的主配置
type CrowdfundConfig struct {
	LogConf           LogConfig           `json:"logger,optional"`
	ProgramConf       ProgramConfig       `json:"program,optional"`
	RuntimeConf       RuntimeConfig       `json:"runtime,optional"`
	RedisConf         RedisConfig         `json:"redis,optional"`
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer,optional"`
	RpcConf           RpcConfig           `json:"rpc,optional"`
}

// WatcherConfig 是众筹账户跟踪服务的主配置
type WatcherConfig struct {
	LogConf           LogConfig           `json:"logger,optional"`
	ProgramConf       ProgramConfig       `json:"program,optional"`
	RedisConf         RedisConfig         `json:"redis,optional"`
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer,optional"`
	RpcConf           RpcConfig           `json:"rpc,optional"`
	Grpc              GrpcConfig          `json:"grpc,optional"`
	WatchConf         WatchConfig         `json:"watch"`
}
