package config

import (
	"testing"

	"crowdfund-sol/internal/consts"
	"crowdfund-sol/internal/sysvar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watcherYaml = `
logger:
  format: json
  level: debug
program:
  program_id: 64uKjyJnMEcq55sJR3G3DCcmB1NrJhGpy9QwWqVzqrGs
  rent:
    lamports_per_byte_year: 10
redis:
  addr: 127.0.0.1:6379
kafka_producer:
  brokers: 127.0.0.1:9092
grpc:
  endpoint: geyser.example.org:443
watch:
  campaigns:
    - 64uKjyJnMEcq55sJR3G3DCcmB1NrJhGpy9QwWqVzqrGs
`

func TestLoadWatcherConfig(t *testing.T) {
	var c WatcherConfig
	require.NoError(t, LoadFromYamlBytes([]byte(watcherYaml), &c))

	assert.Equal(t, "json", c.LogConf.Format)
	assert.Equal(t, "debug", c.LogConf.ToLogOption().Level)
	assert.Equal(t, "crowdfund-campaign-events", c.KafkaProducerConf.Topic, "未配置 topic 时使用默认值")
	assert.Equal(t, 4, c.KafkaProducerConf.Partitions)
	assert.True(t, c.KafkaProducerConf.Enabled())
	assert.Equal(t, 10, c.Grpc.StreamPingIntervalSec)
	assert.Equal(t, "confirmed", c.WatchConf.Commitment)

	pid, err := c.ProgramConf.ProgramPubkey()
	require.NoError(t, err)
	assert.Equal(t, consts.DefaultCrowdfundProgram, pid)

	rent := c.ProgramConf.Rent.ToRent()
	assert.Equal(t, uint64(10), rent.LamportsPerByteYear)
	assert.Equal(t, sysvar.DefaultExemptionThreshold, rent.ExemptionThreshold, "未配置项回落到默认值")

	campaigns, err := c.WatchConf.CampaignPubkeys()
	require.NoError(t, err)
	assert.Len(t, campaigns, 1)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CROWDFUND_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("CROWDFUND_KAFKA_BROKERS", "k1:9092,k2:9092")

	var c WatcherConfig
	require.NoError(t, LoadFromYamlBytes([]byte(watcherYaml), &c))
	assert.Equal(t, "redis.internal:6380", c.RedisConf.Addr, "环境变量应覆盖配置文件")
	assert.Equal(t, "k1:9092,k2:9092", c.KafkaProducerConf.Brokers)
}

func TestCrowdfundConfigDefaults(t *testing.T) {
	var c CrowdfundConfig
	require.NoError(t, LoadFromYamlBytes([]byte("logger:\n  level: warn\n"), &c))

	pid, err := c.ProgramConf.ProgramPubkey()
	require.NoError(t, err)
	assert.Equal(t, consts.DefaultCrowdfundProgram, pid, "未配置 program_id 使用默认地址")
	assert.Equal(t, consts.DefaultLamportsPerSignature, c.RuntimeConf.FeePerSignature())
	assert.Equal(t, sysvar.DefaultRent(), c.ProgramConf.Rent.ToRent())
	assert.False(t, c.KafkaProducerConf.Enabled())
}

func TestProgramPubkey_Invalid(t *testing.T) {
	c := ProgramConfig{ProgramID: "not-base58-0OIl"}
	_, err := c.ProgramPubkey()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CROWDFUND_RPC_ENDPOINT", "http://127.0.0.1:8899")

	var c CrowdfundConfig
	require.NoError(t, LoadDefaults(&c))
	assert.Equal(t, "memory", c.RuntimeConf.Store)
	assert.Equal(t, "crowdfund", c.RedisConf.KeyPrefix)
	assert.Equal(t, 5, c.RpcConf.TimeoutSec)
	assert.Equal(t, "http://127.0.0.1:8899", c.RpcConf.Endpoint)
}
