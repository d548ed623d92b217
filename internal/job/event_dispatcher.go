package job

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"walletsystem/internal/model"

	"go.uber.org/zap"
)

// Publisher 消息发送方，由 mq.Producer 实现
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// EventDispatcher 异步发送钱包事件
//
// 业务事务提交后把事件丢进内存队列，由后台 goroutine 发往 Kafka。
// 队列满或者重试耗尽时事件直接丢弃并记日志：事件只是通知，余额以数据库为准。
type EventDispatcher struct {
	publisher     Publisher
	topic         string
	queue         chan *model.WalletEvent
	maxRetry      int
	retryInterval time.Duration
	logger        *zap.Logger

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewEventDispatcher publisher 为 nil 时（Kafka 未启用）事件只记日志
func NewEventDispatcher(publisher Publisher, topic string, queueSize, maxRetry int, logger *zap.Logger) *EventDispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if maxRetry <= 0 {
		maxRetry = 1
	}
	return &EventDispatcher{
		publisher:     publisher,
		topic:         topic,
		queue:         make(chan *model.WalletEvent, queueSize),
		maxRetry:      maxRetry,
		retryInterval: 100 * time.Millisecond,
		logger:        logger.Named("event_dispatcher"),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Publish 入队，不阻塞调用方
func (d *EventDispatcher) Publish(event *model.WalletEvent) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("事件队列已满，丢弃事件",
			zap.String("event_no", event.EventNo),
			zap.String("type", event.Type))
	}
}

// Start 阻塞运行，直到 ctx 取消或 Stop 被调用；退出前把队列里剩余的事件发完
func (d *EventDispatcher) Start(ctx context.Context) {
	defer close(d.done)
	d.logger.Info("事件发送任务启动", zap.String("topic", d.topic))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("收到停止信号，发送剩余事件后退出")
			d.drain()
			return
		case <-d.stopCh:
			d.logger.Info("任务停止，发送剩余事件后退出")
			d.drain()
			return
		case event := <-d.queue:
			d.send(event)
		}
	}
}

// Stop 通知任务退出并等待剩余事件处理完，必须在 Start 之后调用
func (d *EventDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.done
}

func (d *EventDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.send(event)
		default:
			return
		}
	}
}

func (d *EventDispatcher) send(event *model.WalletEvent) {
	fields := []zap.Field{
		zap.String("event_no", event.EventNo),
		zap.String("type", event.Type),
		zap.Int64("user_id", event.UserID),
	}

	if d.publisher == nil {
		d.logger.Debug("Kafka 未启用，事件仅记录", fields...)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("事件序列化失败", append(fields, zap.Error(err))...)
		return
	}

	for attempt := 1; attempt <= d.maxRetry; attempt++ {
		err = d.publisher.SendMessage(d.topic, event.EventNo, string(payload))
		if err == nil {
			d.logger.Debug("事件发送成功", fields...)
			return
		}
		d.logger.Warn("事件发送失败",
			append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		if attempt < d.maxRetry {
			time.Sleep(d.retryInterval * time.Duration(attempt))
		}
	}

	d.logger.Error("事件超过最大重试次数，已丢弃", fields...)
}
