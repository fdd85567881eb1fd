// Package handler 本文件负责组装所有 Handler
package handler

import (
	"tutor_chat_server/internal/service"
)

// Handlers 聚合所有 Handler 实例，供 Router 注册路由
type Handlers struct {
	Conversation *ConversationHandler
	Message      *MessageHandler
	Read         *ReadHandler
	Auth         *AuthHandler
	Ws           *WsHandler
}

// NewHandlers 用 Services 创建所有 Handler
// wsBufferSize 来自 chatConfig.sendBufferSize
func NewHandlers(svc *service.Services, wsBufferSize int) *Handlers {
	return &Handlers{
		Conversation: NewConversationHandler(svc.Conversation),
		Message:      NewMessageHandler(svc.Message),
		Read:         NewReadHandler(svc.ReadState),
		Auth:         NewAuthHandler(svc.Auth),
		Ws:           NewWsHandler(svc.Hub, wsBufferSize),
	}
}
