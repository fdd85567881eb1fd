// Package chat 实现了聊天系统的核心服务层
// registry.go
// 核心职责：连接与会话成员关系的内存表
// 成员关系只存在于内存中，断线即销毁，重连后需要重新 join
package chat

import (
	"sync"

	"go.uber.org/zap"

	"tutor_chat_server/internal/dao/database/repository"
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/pkg/errorx"
)

// Endpoint 一条可投递的连接，由 UserConn 实现，测试中可替换
type Endpoint interface {
	ID() string
	UserID() string
	// Send 非阻塞投递，缓冲区满时连接会被断开
	Send(payload []byte) error
}

// ErrConnGone 连接已断开或从未注册
var ErrConnGone = errorx.New(errorx.CodeNotFound, "连接已断开")

type member struct {
	ep     Endpoint
	ident  request.Identity
	groups map[string]struct{}
}

// Registry 以连接 ID 为键，读多写少用 RWMutex
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*member
	// groups conversationId -> connId -> 加入时的会话水位线
	groups map[string]map[string]repository.MessageKey
}

// NewRegistry 创建空表
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*member),
		groups: make(map[string]map[string]repository.MessageKey),
	}
}

// Add 同一用户可以有多条连接
func (r *Registry) Add(ep Endpoint, ident request.Identity) {
	r.mu.Lock()
	r.conns[ep.ID()] = &member{ep: ep, ident: ident, groups: make(map[string]struct{})}
	r.mu.Unlock()
}

// Remove 删除连接及其全部成员关系，返回是否存在
func (r *Registry) Remove(connId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conns[connId]
	if !ok {
		return false
	}
	for convId := range m.groups {
		r.leaveLocked(convId, connId)
	}
	delete(r.conns, connId)
	return true
}

// Join 重复加入保留最初的水位线
func (r *Registry) Join(connId, conversationId string, watermark repository.MessageKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conns[connId]
	if !ok {
		return ErrConnGone
	}
	group := r.groups[conversationId]
	if group == nil {
		group = make(map[string]repository.MessageKey)
		r.groups[conversationId] = group
	}
	if _, joined := group[connId]; !joined {
		group[connId] = watermark
	}
	m.groups[conversationId] = struct{}{}
	return nil
}

// Leave 不是成员时什么也不做
func (r *Registry) Leave(connId, conversationId string) {
	r.mu.Lock()
	r.leaveLocked(conversationId, connId)
	r.mu.Unlock()
}

func (r *Registry) leaveLocked(conversationId, connId string) {
	if group := r.groups[conversationId]; group != nil {
		delete(group, connId)
		if len(group) == 0 {
			delete(r.groups, conversationId)
		}
	}
	if m, ok := r.conns[connId]; ok {
		delete(m.groups, conversationId)
	}
}

// Identity 连接对应的用户身份
func (r *Registry) Identity(connId string) (request.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.conns[connId]
	if !ok {
		return request.Identity{}, false
	}
	return m.ident, true
}

// IsMember 连接是否在会话组内
func (r *Registry) IsMember(connId, conversationId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[conversationId][connId]
	return ok
}

// Members 会话组内的连接 ID
func (r *Registry) Members(conversationId string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.groups[conversationId]))
	for id := range r.groups[conversationId] {
		ids = append(ids, id)
	}
	return ids
}

// Len 在线连接数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Dispatch 投递一条消息给组内除 originConnId 外的连接
// 消息键不晚于加入水位线的连接跳过，保证不会收到加入前已持久化的消息
func (r *Registry) Dispatch(conversationId, originConnId string, key repository.MessageKey, payload []byte) int {
	return r.deliver(conversationId, originConnId, &key, payload)
}

// Broadcast 不带水位线过滤，用于输入状态
func (r *Registry) Broadcast(conversationId, originConnId string, payload []byte) int {
	return r.deliver(conversationId, originConnId, nil, payload)
}

func (r *Registry) deliver(conversationId, originConnId string, key *repository.MessageKey, payload []byte) int {
	r.mu.RLock()
	targets := make([]Endpoint, 0, len(r.groups[conversationId]))
	for connId, watermark := range r.groups[conversationId] {
		if connId == originConnId {
			continue
		}
		if key != nil && !watermark.Less(*key) {
			continue
		}
		if m, ok := r.conns[connId]; ok {
			targets = append(targets, m.ep)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, ep := range targets {
		if err := ep.Send(payload); err != nil {
			zap.L().Debug("投递失败",
				zap.String("conversation_id", conversationId),
				zap.String("conn_id", ep.ID()),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}
