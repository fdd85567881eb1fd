// Package chat 实现了聊天系统的核心服务层
// broker.go
// 核心职责：定义消息代理接口
// 抽象跨连接的事件分发，支持 Kafka 和 Channel 两种实现
package chat

import (
	"context"
	"encoding/json"
)

// 信封类型
const (
	EnvelopeMessage = "message"
	EnvelopeTyping  = "typing"
)

// Envelope 经代理分发的事件
// Push 是已序列化好的下行帧，各节点原样投递
type Envelope struct {
	Kind           string          `json:"kind"`
	ConversationId string          `json:"conversation_id"`
	OriginConnId   string          `json:"origin_conn_id"`
	SendAt         int64           `json:"send_at,omitempty"`
	MessageId      int64           `json:"message_id,omitempty"`
	Push           json.RawMessage `json:"push"`
}

// DeliverFunc 代理把事件交给本节点的连接表
type DeliverFunc func(env *Envelope)

// MessageBroker 定义消息代理接口
// 支持多种实现：KafkaBroker (分布式), ChannelBroker (单机)
// 同一会话的事件必须按发布顺序交付
type MessageBroker interface {
	// Publish 发布事件
	Publish(ctx context.Context, env *Envelope) error
	// Start 启动消费循环
	Start(deliver DeliverFunc)
	// Close 关闭代理资源
	Close()
}
