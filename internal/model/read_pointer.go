package model

import (
	"gorm.io/gorm"
)

// ReadPointer 已读指针
// 每个 (会话, 用户) 一行，只前进不后退
type ReadPointer struct {
	gorm.Model

	ConversationId string `gorm:"column:conversation_id;type:char(20);not null;uniqueIndex:idx_rp_conv_user,priority:1;comment:会话uuid"`
	UserId         string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_rp_conv_user,priority:2;index;comment:用户id"`

	// LastReadAt 已读消息的 send_at
	LastReadAt int64 `gorm:"column:last_read_at;not null;comment:已读位置时间(ms)"`
	// LastReadMessageId 已读消息 uuid
	LastReadMessageId int64 `gorm:"column:last_read_message_id;not null;comment:已读位置消息id"`
}

// TableName 指定表名
func (ReadPointer) TableName() string {
	return "read_pointer"
}
