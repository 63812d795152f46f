package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crowdfund-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

var (
	ErrDeliveryTimeout = errors.New("kafka delivery timeout")
	ErrDeliveryClosed  = errors.New("kafka delivery channel closed")
)

// MessageProducer 发送需要的生产者方法，*kafka.Producer 满足该接口
type MessageProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

// KafkaJob 一条待发送的事件消息
type KafkaJob struct {
	Topic     string
	Partition int32
	Key       []byte // 众筹账户地址，同一账户的事件保持顺序
	Value     []byte
	Kind      string // 事件类型，写入消息头 event_kind
}

func (j *KafkaJob) message() *kafka.Message {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &j.Topic, Partition: j.Partition},
		Key:            j.Key,
		Value:          j.Value,
	}
	if j.Kind != "" {
		msg.Headers = []kafka.Header{{Key: "event_kind", Value: []byte(j.Kind)}}
	}
	return msg
}

// KafkaSendResult 单条消息的投递结果
type KafkaSendResult struct {
	Job *KafkaJob
	Err error
}

// SendKafkaJobs 并发投递并等待每条消息的回执。
// 每条消息最多等待 perMessageTimeout，ctx 取消时立即放弃等待。
func SendKafkaJobs(
	ctx context.Context,
	producer MessageProducer,
	jobs []*KafkaJob,
	perMessageTimeout time.Duration,
) (ok []*KafkaJob, failed []KafkaSendResult) {
	results := make([]KafkaSendResult, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job *KafkaJob) {
			defer wg.Done()
			results[i] = KafkaSendResult{Job: job, Err: deliver(ctx, producer, job, perMessageTimeout)}
		}(i, job)
	}
	wg.Wait()

	// 按输入顺序汇总
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
			continue
		}
		ok = append(ok, res.Job)
	}
	return ok, failed
}

func deliver(ctx context.Context, producer MessageProducer, job *KafkaJob, timeout time.Duration) error {
	deliveryChan := make(chan kafka.Event, 1)
	if err := producer.Produce(job.message(), deliveryChan); err != nil {
		return fmt.Errorf("produce: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e, open := <-deliveryChan:
		if !open {
			return ErrDeliveryClosed
		}
		msg, isMsg := e.(*kafka.Message)
		if !isMsg {
			return fmt.Errorf("unexpected delivery event %T: %v", e, e)
		}
		return msg.TopicPartition.Error
	case <-timer.C:
		go safeDrain(deliveryChan, job.Topic)
		return fmt.Errorf("%w (>%v)", ErrDeliveryTimeout, timeout)
	case <-ctx.Done():
		go safeDrain(deliveryChan, job.Topic)
		return fmt.Errorf("ctx cancelled: %w", ctx.Err())
	}
}

// safeDrain 放弃等待后仍读掉回执，避免 librdkafka 回调阻塞
func safeDrain(ch <-chan kafka.Event, topic string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("[MQ:safeDrain] drain panic, topic=%s, err=%v", topic, r)
		}
	}()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
	}
}
