// Package model 定义数据库实体模型
// 本文件定义消息模型，用于存储聊天消息
package model

import (
	"gorm.io/gorm"
)

// Message 消息模型
// 对应数据库 message 表
// 排序键为 (send_at, uuid)，消息写入后不可修改
type Message struct {
	gorm.Model

	// Uuid 消息唯一标识
	// 使用雪花算法生成的 int64 类型 ID
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	// ConversationId 所属会话 uuid
	ConversationId string `gorm:"column:conversation_id;type:char(20);not null;index:idx_msg_conv_key,priority:1;uniqueIndex:idx_msg_idem,priority:1;comment:会话uuid"`

	// SendId 发送者 id
	SendId string `gorm:"column:send_id;type:varchar(64);not null;index;uniqueIndex:idx_msg_idem,priority:2;comment:发送者id"`

	// SendName 发送者昵称，冗余存储避免联表
	SendName string `gorm:"column:send_name;type:varchar(64);not null;comment:发送者昵称"`

	// Content 文本内容，最多 5000 字符
	Content string `gorm:"column:content;type:TEXT;comment:消息内容"`

	// SendAt 服务端分配的毫秒时间戳
	SendAt int64 `gorm:"column:send_at;not null;index:idx_msg_conv_key,priority:2;comment:发送时间(ms)"`

	// ClientMsgId 客户端幂等标识，可为空
	ClientMsgId *string `gorm:"column:client_msg_id;type:varchar(64);uniqueIndex:idx_msg_idem,priority:3;comment:客户端消息id"`

	// Attachments 按上传顺序排列
	Attachments []Attachment `gorm:"foreignKey:MessageUuid;references:Uuid"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}
