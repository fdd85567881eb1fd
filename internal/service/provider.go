// Package service 本文件负责组装各个 Service 实例
package service

import (
	"time"

	"tutor_chat_server/internal/config"
	"tutor_chat_server/internal/dao/database/repository"
	myredis "tutor_chat_server/internal/dao/redis"
	"tutor_chat_server/internal/service/auth"
	"tutor_chat_server/internal/service/booking"
	"tutor_chat_server/internal/service/chat"
	"tutor_chat_server/internal/service/conversation"
	"tutor_chat_server/internal/service/message"
	"tutor_chat_server/internal/service/readstate"
)

// Services 聚合所有 Service 实例，Handler 层通过它访问业务
type Services struct {
	Conversation ConversationService
	Message      MessageService
	ReadState    ReadStateService
	Auth         AuthService
	Booking      BookingService
	Hub          *chat.Hub
}

// Dependencies 组装 Services 需要的外部资源
// Broker 决定单机还是多节点扇出，Start 由 NewServices 负责
type Dependencies struct {
	Repos   *repository.Repositories
	Cache   myredis.AsyncCacheService
	Storage message.FileStorage
	Broker  chat.MessageBroker
	Chat    config.ChatConfig
}

// NewServices 创建并注入所有 Service 实例
func NewServices(deps Dependencies) *Services {
	cfg := deps.Chat
	convSvc := conversation.NewConversationService(deps.Repos, deps.Cache,
		time.Duration(cfg.ConversationListTTL)*time.Second)
	msgSvc := message.NewMessageService(deps.Repos, convSvc, deps.Storage, deps.Cache, message.Options{
		MaxContentLength:  cfg.MaxContentLength,
		DefaultPageSize:   cfg.DefaultPageSize,
		MaxPageSize:       cfg.MaxPageSize,
		IdempotencyWindow: time.Duration(cfg.IdempotencyWindow) * time.Second,
		AppendRetries:     cfg.AppendRetries,
	})
	readSvc := readstate.NewReadStateService(deps.Repos, convSvc)
	bookingSvc := booking.NewBookingService(deps.Repos, convSvc)
	authSvc := auth.NewAuthService(deps.Cache)

	hub := chat.NewHub(chat.NewRegistry(), convSvc, msgSvc, deps.Broker)
	deps.Broker.Start(hub.Deliver)

	return &Services{
		Conversation: convSvc,
		Message:      msgSvc,
		ReadState:    readSvc,
		Auth:         authSvc,
		Booking:      bookingSvc,
		Hub:          hub,
	}
}
