// Package service 定义业务层接口
// Handler 层只依赖这里的接口，具体实现由 provider.go 组装
package service

import (
	"context"
	"mime/multipart"

	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/internal/service/booking"
)

// ConversationService 会话业务接口
type ConversationService interface {
	// CreateConversation 建会话，已存在则直接返回
	CreateConversation(ctx context.Context, requester request.Identity, req request.CreateConversationRequest) (*respond.ConversationRespond, error)
	// ListConversationsForUser 按最后消息时间倒序
	ListConversationsForUser(ctx context.Context, userId string) ([]respond.ConversationRespond, error)
	// GetConversation 参与者或管理员可见
	GetConversation(ctx context.Context, requester request.Identity, conversationId string) (*respond.ConversationRespond, error)
}

// MessageService 消息业务接口
type MessageService interface {
	// Page 历史消息，新到旧
	Page(ctx context.Context, requester request.Identity, req request.PageMessagesRequest) (*respond.PageMessagesRespond, error)
	// UploadAttachment 上传附件，返回可放入 send_message 的附件描述
	UploadAttachment(ctx context.Context, requester request.Identity, conversationId string, fileHeader *multipart.FileHeader) (*respond.AttachmentRespond, error)
}

// ReadStateService 已读指针与未读数
type ReadStateService interface {
	MarkRead(ctx context.Context, conversationId, userId string, messageId int64) (bool, error)
	UnreadCount(ctx context.Context, conversationId, userId string) (int64, error)
	UnreadCountsForUser(ctx context.Context, userId string) ([]respond.UnreadRespond, error)
}

// AuthService 令牌刷新
type AuthService interface {
	RefreshToken(ctx context.Context, refreshToken string) (*respond.RefreshTokenRespond, error)
}

// BookingService 课程预约事件消费
type BookingService interface {
	Handle(ctx context.Context, ev booking.Event) error
}
