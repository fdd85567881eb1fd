package respond

import (
	"tutor_chat_server/internal/model"
	"tutor_chat_server/pkg/enum/conversation_kind_enum"
)

// ConversationRespond 会话详情 / 会话列表项
// 使用位置:
//   - internal/service/conversation/service.go
type ConversationRespond struct {
	ConversationId string `json:"conversation_id"`
	Kind           string `json:"kind"`
	TeacherId      string `json:"teacher_id"`
	TeacherName    string `json:"teacher_name"`
	ParentId       string `json:"parent_id,omitempty"`
	ParentName     string `json:"parent_name,omitempty"`
	StudentId      string `json:"student_id,omitempty"`
	StudentName    string `json:"student_name,omitempty"`
	IsActive       bool   `json:"is_active"`
	IsReadOnly     bool   `json:"is_read_only"`
	LastMessage    string `json:"last_message"`
	LastMessageAt  int64  `json:"last_message_at"`
	UnreadCount    int64  `json:"unread_count"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// NewConversationRespond names 为 uuid -> 昵称，可为 nil
func NewConversationRespond(c *model.Conversation, names map[string]string, unread int64) ConversationRespond {
	return ConversationRespond{
		ConversationId: c.Uuid,
		Kind:           conversation_kind_enum.Kind(c.Kind).String(),
		TeacherId:      c.TeacherId,
		TeacherName:    names[c.TeacherId],
		ParentId:       c.ParentId,
		ParentName:     names[c.ParentId],
		StudentId:      c.StudentId,
		StudentName:    names[c.StudentId],
		IsActive:       c.IsActive,
		IsReadOnly:     c.IsReadOnly,
		LastMessage:    c.LastMessage,
		LastMessageAt:  c.LastMessageAt,
		UnreadCount:    unread,
		CreatedAt:      c.CreatedAt.UnixMilli(),
		UpdatedAt:      c.UpdatedAt.UnixMilli(),
	}
}
