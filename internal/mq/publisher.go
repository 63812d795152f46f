package mq

import (
	"context"
	"fmt"
	"time"

	"crowdfund-sol/internal/config"
	"crowdfund-sol/internal/logic/event"
	"crowdfund-sol/internal/utils"
	"crowdfund-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Publisher 把众筹事件写入 Kafka，同一账户的事件进入同一分区以保证顺序
type Publisher struct {
	producer   *kafka.Producer
	topic      string
	partitions int
	timeout    time.Duration
}

func NewPublisher(producer *kafka.Producer, cfg config.KafkaProducerConfig) *Publisher {
	timeout := time.Duration(cfg.SendTimeMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Publisher{
		producer:   producer,
		topic:      cfg.Topic,
		partitions: cfg.Partitions,
		timeout:    timeout,
	}
}

// BuildJobs 把事件编码为 Kafka 消息
func BuildJobs(topic string, partitions int, events []event.CampaignEvent) ([]*KafkaJob, error) {
	jobs := make([]*KafkaJob, 0, len(events))
	for i := range events {
		ev := &events[i]
		value, err := ev.Marshal()
		if err != nil {
			return nil, fmt.Errorf("encode event %s@%d: %w", ev.Campaign, ev.Slot, err)
		}
		jobs = append(jobs, &KafkaJob{
			Topic:     topic,
			Partition: utils.PartitionOf(ev.Campaign, partitions),
			Key:       ev.Campaign[:],
			Value:     value,
			Kind:      ev.Kind.String(),
		})
	}
	return jobs, nil
}

// Publish 实现 event.Sink
func (p *Publisher) Publish(ctx context.Context, events []event.CampaignEvent) error {
	if len(events) == 0 {
		return nil
	}
	jobs, err := BuildJobs(p.topic, p.partitions, events)
	if err != nil {
		return err
	}

	ok, failed := SendKafkaJobs(ctx, p.producer, jobs, p.timeout)
	if len(failed) > 0 {
		for _, f := range failed {
			logger.Errorf("[MQ:Publish] 发送失败, topic=%s, partition=%d, err=%v", f.Job.Topic, f.Job.Partition, f.Err)
		}
		return fmt.Errorf("publish campaign events: %d ok, %d failed, first error: %w", len(ok), len(failed), failed[0].Err)
	}
	logger.Debugf("[MQ:Publish] 发送众筹事件 %d 条", len(ok))
	return nil
}

// Close 刷新未发送的消息并关闭生产者
func (p *Publisher) Close() {
	if remaining := p.producer.Flush(5000); remaining > 0 {
		logger.Warnf("[MQ:Close] 关闭时仍有 %d 条消息未发送", remaining)
	}
	p.producer.Close()
}
