// Package chat 实现了聊天系统的核心服务层
// channel_broker.go
// 核心职责：单机模式下的事件分发
// 单个分发协程保证全局 FIFO，不依赖外部消息队列，适合小规模或开发环境
package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tutor_chat_server/pkg/constants"
	"tutor_chat_server/pkg/errorx"
)

// ChannelBroker 进程内代理
type ChannelBroker struct {
	// transmit 事件转发通道
	transmit chan *Envelope
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewChannelBroker 创建 ChannelBroker 实例
func NewChannelBroker() *ChannelBroker {
	return &ChannelBroker{
		transmit: make(chan *Envelope, constants.CHANNEL_SIZE),
		done:     make(chan struct{}),
	}
}

// Publish 通道满时阻塞，直到 ctx 取消
func (b *ChannelBroker) Publish(ctx context.Context, env *Envelope) error {
	select {
	case <-b.done:
		return errorx.New(errorx.CodeServerBusy, "消息代理已关闭")
	default:
	}
	select {
	case b.transmit <- env:
		return nil
	case <-b.done:
		return errorx.New(errorx.CodeServerBusy, "消息代理已关闭")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start 启动分发协程
func (b *ChannelBroker) Start(deliver DeliverFunc) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.done:
				return
			case env := <-b.transmit:
				b.safeDeliver(deliver, env)
			}
		}
	}()
	zap.L().Info("channel 模式消息代理已启动")
}

// safeDeliver 单条事件的 panic 不能拖垮分发协程
func (b *ChannelBroker) safeDeliver(deliver DeliverFunc, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error(fmt.Sprintf("channel broker panic: %v", r), zap.String("conversation_id", env.ConversationId))
		}
	}()
	deliver(env)
}

// Close 停止分发协程，未分发的事件丢弃
func (b *ChannelBroker) Close() {
	b.once.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}
