// Package chat 实现了聊天系统的核心服务层
// kafka_broker.go
// 核心职责：多节点模式下的事件分发
// 事件以会话 ID 为 key 写入同一分区，各节点用独立消费组读取全量事件，只投递给本机连接
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"tutor_chat_server/internal/infrastructure/mq"
)

// KafkaTransport KafkaBroker 依赖的读写端，生产环境为 *mq.KafkaClient
type KafkaTransport interface {
	WriteMessage(ctx context.Context, key, value []byte) error
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close()
}

var _ KafkaTransport = (*mq.KafkaClient)(nil)

// KafkaBroker 基于 Kafka 的代理
type KafkaBroker struct {
	client KafkaTransport
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaBroker 创建 KafkaBroker 实例
func NewKafkaBroker(client KafkaTransport) *KafkaBroker {
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaBroker{client: client, ctx: ctx, cancel: cancel}
}

// Publish 同步写入，返回时事件已被 broker 接收
func (b *KafkaBroker) Publish(ctx context.Context, env *Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.WriteMessage(ctx, []byte(env.ConversationId), value)
}

// Start 启动消费协程
func (b *KafkaBroker) Start(deliver DeliverFunc) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			kafkaMessage, err := b.client.ReadMessage(b.ctx)
			if err != nil {
				if b.ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				zap.L().Error("读取 kafka 消息失败", zap.Error(err))
				select {
				case <-b.ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			var env Envelope
			if err := json.Unmarshal(kafkaMessage.Value, &env); err != nil {
				zap.L().Error("kafka 消息反序列化失败",
					zap.Int("partition", kafkaMessage.Partition),
					zap.Int64("offset", kafkaMessage.Offset),
					zap.Error(err),
				)
				continue
			}
			b.safeDeliver(deliver, &env)
		}
	}()
	zap.L().Info("kafka 模式消息代理已启动")
}

// safeDeliver 单条事件的 panic 只丢弃该事件，消费循环继续
func (b *KafkaBroker) safeDeliver(deliver DeliverFunc, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error(fmt.Sprintf("kafka broker panic: %v", r), zap.String("conversation_id", env.ConversationId))
		}
	}()
	deliver(env)
}

// Close 停止消费并关闭客户端
func (b *KafkaBroker) Close() {
	b.cancel()
	b.wg.Wait()
	b.client.Close()
}
