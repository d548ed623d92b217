package mq

import (
	"fmt"
	"time"

	"walletsystem/internal/config"

	"github.com/IBM/sarama"
	"github.com/sony/gobreaker"
)

// Producer Kafka 同步生产者
//
// 外面套一层熔断器：Kafka 持续不可用时快速失败，不拖慢事件发送任务
type Producer struct {
	producer sarama.SyncProducer
	breaker  *gobreaker.CircuitBreaker
}

// NewKafka 初始化 Kafka 生产者
func NewKafka(cfg *config.KafkaConfig) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}

	return NewProducer(producer), nil
}

// NewProducer 包装一个已有的 sarama.SyncProducer
func NewProducer(producer sarama.SyncProducer) *Producer {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Producer{
		producer: producer,
		breaker:  breaker,
	}
}

// SendMessage 发送消息到 Kafka
func (p *Producer) SendMessage(topic, key, value string) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(key),
			Value: sarama.StringEncoder(value),
		}
		_, _, err := p.producer.SendMessage(msg)
		return nil, err
	})
	return err
}

// Close 关闭 Kafka 生产者
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
