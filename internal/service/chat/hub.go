// Package chat 实现了聊天系统的核心服务层
// hub.go
// 核心职责：连接生命周期与会话内的实时交互
// 1. 连接注册/注销，join/leave 会话组
// 2. send_message：鉴权 -> 持久化 -> 经代理扇出
// 3. 输入状态广播
package chat

import (
	"context"

	"go.uber.org/zap"

	"tutor_chat_server/internal/dao/database/repository"
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/internal/model"
	"tutor_chat_server/pkg/errorx"
	"tutor_chat_server/pkg/util/keylock"
)

// ConversationAuthorizer 由会话服务实现
type ConversationAuthorizer interface {
	AuthorizeParticipant(ctx context.Context, userId, conversationId string) (*model.Conversation, error)
	AuthorizeSender(ctx context.Context, userId, conversationId string) (*model.Conversation, error)
}

// MessageAppender 由消息服务实现
type MessageAppender interface {
	Append(ctx context.Context, conv *model.Conversation, sender request.Identity, req *request.SendMessageRequest) (*model.Message, bool, error)
}

// Hub 聚合连接表、会话鉴权、消息存储和代理
type Hub struct {
	registry *Registry
	convs    ConversationAuthorizer
	messages MessageAppender
	broker   MessageBroker
	// locks 同一会话的 join 与 send 串行
	locks *keylock.KeyLock
}

// NewHub 创建 Hub，调用方负责 broker.Start(hub.Deliver)
func NewHub(registry *Registry, convs ConversationAuthorizer, messages MessageAppender, broker MessageBroker) *Hub {
	return &Hub{
		registry: registry,
		convs:    convs,
		messages: messages,
		broker:   broker,
		locks:    keylock.New(),
	}
}

// Registry 连接表
func (h *Hub) Registry() *Registry {
	return h.registry
}

// OnConnect 注册连接，同一用户可以同时有多条
func (h *Hub) OnConnect(ep Endpoint, ident request.Identity) {
	h.registry.Add(ep, ident)
	zap.L().Info("ws 连接建立",
		zap.String("conn_id", ep.ID()),
		zap.String("user_id", ident.UserId),
		zap.String("role", ident.Role.String()),
	)
}

// OnDisconnect 移除连接及其全部成员关系，不影响该用户的其他连接
func (h *Hub) OnDisconnect(connId string) {
	if h.registry.Remove(connId) {
		zap.L().Info("ws 连接断开", zap.String("conn_id", connId))
	}
}

// Join 只有参与者可以加入
// 加入时记录会话已持久化的水位线，此前的消息不会再推给该连接
func (h *Hub) Join(ctx context.Context, connId, conversationId string) error {
	ident, ok := h.registry.Identity(connId)
	if !ok {
		return ErrConnGone
	}

	unlock := h.locks.Lock(conversationId)
	defer unlock()

	conv, err := h.convs.AuthorizeParticipant(ctx, ident.UserId, conversationId)
	if err != nil {
		return err
	}
	watermark := repository.MessageKey{SendAt: conv.LastMessageAt, Uuid: conv.LastMessageId}
	if err := h.registry.Join(connId, conversationId, watermark); err != nil {
		return err
	}
	zap.L().Debug("加入会话",
		zap.String("conn_id", connId),
		zap.String("conversation_id", conversationId),
	)
	return nil
}

// Leave 幂等
func (h *Hub) Leave(connId, conversationId string) {
	h.registry.Leave(connId, conversationId)
}

// SendMessage 持久化后再扇出
// 发起连接通过返回值拿到消息作为 ack，不再收到推送；同一用户的其他连接照常收到
func (h *Hub) SendMessage(ctx context.Context, connId string, req *request.SendMessageRequest) (*respond.MessageRespond, error) {
	ident, ok := h.registry.Identity(connId)
	if !ok {
		return nil, ErrConnGone
	}

	unlock := h.locks.Lock(req.ConversationId)
	defer unlock()

	conv, err := h.convs.AuthorizeSender(ctx, ident.UserId, req.ConversationId)
	if err != nil {
		return nil, err
	}
	msg, duplicate, err := h.messages.Append(ctx, conv, ident, req)
	if err != nil {
		return nil, err
	}
	rsp := respond.NewMessageRespond(msg)
	if duplicate {
		return &rsp, nil
	}

	push, err := messagePush(rsp)
	if err != nil {
		zap.L().Error("序列化消息推送失败", zap.Int64("message_id", msg.Uuid), zap.Error(err))
		return &rsp, nil
	}
	env := &Envelope{
		Kind:           EnvelopeMessage,
		ConversationId: msg.ConversationId,
		OriginConnId:   connId,
		SendAt:         msg.SendAt,
		MessageId:      msg.Uuid,
		Push:           push,
	}
	// 消息已落库，扇出失败由对端分页补齐
	if err := h.broker.Publish(ctx, env); err != nil {
		zap.L().Error("发布消息失败",
			zap.String("conversation_id", msg.ConversationId),
			zap.Int64("message_id", msg.Uuid),
			zap.Error(err),
		)
	}
	return &rsp, nil
}

// TypingStart 必须先 join，尽力而为
func (h *Hub) TypingStart(ctx context.Context, connId, conversationId string) error {
	return h.typing(ctx, connId, conversationId, respond.WsTypeUserTyping)
}

// TypingStop 同 TypingStart
func (h *Hub) TypingStop(ctx context.Context, connId, conversationId string) error {
	return h.typing(ctx, connId, conversationId, respond.WsTypeUserStoppedTyping)
}

func (h *Hub) typing(ctx context.Context, connId, conversationId, typ string) error {
	ident, ok := h.registry.Identity(connId)
	if !ok {
		return ErrConnGone
	}
	if !h.registry.IsMember(connId, conversationId) {
		return errorx.ErrForbidden
	}
	data := respond.TypingRespond{ConversationId: conversationId, UserId: ident.UserId}
	if typ == respond.WsTypeUserTyping {
		data.DisplayName = ident.Nickname
	}
	push, err := typingPush(typ, data)
	if err != nil {
		return err
	}
	err = h.broker.Publish(ctx, &Envelope{
		Kind:           EnvelopeTyping,
		ConversationId: conversationId,
		OriginConnId:   connId,
		Push:           push,
	})
	if err != nil {
		zap.L().Debug("发布输入状态失败", zap.String("conversation_id", conversationId), zap.Error(err))
	}
	return nil
}

// Deliver 代理回调，投递给本节点的连接
func (h *Hub) Deliver(env *Envelope) {
	switch env.Kind {
	case EnvelopeTyping:
		h.registry.Broadcast(env.ConversationId, env.OriginConnId, env.Push)
	default:
		key := repository.MessageKey{SendAt: env.SendAt, Uuid: env.MessageId}
		h.registry.Dispatch(env.ConversationId, env.OriginConnId, key, env.Push)
	}
}
