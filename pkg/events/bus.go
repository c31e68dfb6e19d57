package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus 进程内事件总线（对外导出）
// 基于Watermill的GoChannel Pub/Sub，事件以JSON消息发布；
// 仅限进程内，不定义任何网络协议
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewBus 创建事件总线（对外导出）
func NewBus(debug bool) *Bus {
	logger := watermill.NewStdLogger(debug, false)
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			// 发布方是调度器热路径，缓冲避免慢订阅者反压阻塞调度
			OutputChannelBuffer:            256,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)
	return &Bus{
		pubsub: pubsub,
		logger: logger,
	}
}

// PublishTask 发布Task状态事件（对外导出）
func (b *Bus) PublishTask(event *TaskStatusEvent) error {
	return b.publish(TopicTaskStatus, event)
}

// PublishRun 发布DAG运行状态事件（对外导出）
func (b *Bus) PublishRun(event *RunStatusEvent) error {
	return b.publish(TopicRunStatus, event)
}

// publish 序列化并发布事件（内部方法）
func (b *Bus) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("发布事件失败: topic=%s, %w", topic, err)
	}
	return nil
}

// SubscribeTasks 订阅Task状态事件（对外导出）
// 返回解码后的事件channel，ctx取消后订阅自动终止
func (b *Bus) SubscribeTasks(ctx context.Context) (<-chan *TaskStatusEvent, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicTaskStatus)
	if err != nil {
		return nil, fmt.Errorf("订阅失败: topic=%s, %w", TopicTaskStatus, err)
	}

	events := make(chan *TaskStatusEvent, 64)
	go func() {
		defer close(events)
		for msg := range messages {
			var event TaskStatusEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.Printf("警告: 解码TaskStatusEvent失败: %v", err)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case events <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// SubscribeRuns 订阅DAG运行状态事件（对外导出）
func (b *Bus) SubscribeRuns(ctx context.Context) (<-chan *RunStatusEvent, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicRunStatus)
	if err != nil {
		return nil, fmt.Errorf("订阅失败: topic=%s, %w", TopicRunStatus, err)
	}

	events := make(chan *RunStatusEvent, 64)
	go func() {
		defer close(events)
		for msg := range messages {
			var event RunStatusEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.Printf("警告: 解码RunStatusEvent失败: %v", err)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case events <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// Close 关闭事件总线（对外导出）
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
