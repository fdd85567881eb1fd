// Package model 定义数据库实体模型
// 本文件定义会话模型，一条会话连接一位老师与家长和/或学生
package model

import (
	"gorm.io/gorm"
)

// Conversation 会话模型
// 对应数据库 conversation 表
// 同一 (kind, teacher, counterpart) 只存在一条，由唯一索引保证
type Conversation struct {
	gorm.Model

	// Uuid 会话唯一标识
	// 格式：C + 时间戳随机字符串
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(20);not null;comment:会话uuid"`

	// Kind 参见 pkg/enum/conversation_kind_enum
	Kind int8 `gorm:"column:kind;not null;uniqueIndex:idx_conv_pair,priority:1;comment:类型，0.家长发起，1.老师发起，2.课程关联"`

	TeacherId string `gorm:"column:teacher_id;type:varchar(64);not null;index;uniqueIndex:idx_conv_pair,priority:2;comment:老师id"`
	ParentId  string `gorm:"column:parent_id;type:varchar(64);not null;index;comment:家长id，可为空"`
	StudentId string `gorm:"column:student_id;type:varchar(64);not null;index;comment:学生id，可为空"`

	// CounterpartId 唯一性判定所用的对端
	// 课程关联会话取学生，其余取家长（无家长时取学生）
	CounterpartId string `gorm:"column:counterpart_id;type:varchar(64);not null;uniqueIndex:idx_conv_pair,priority:3;comment:对端id"`

	IsActive   bool `gorm:"column:is_active;not null;comment:是否有效"`
	IsReadOnly bool `gorm:"column:is_read_only;not null;comment:是否只读"`

	// LastMessageAt 最新消息的 send_at（毫秒），也是新消息时间戳的下限
	LastMessageAt int64 `gorm:"column:last_message_at;not null;index;comment:最近消息时间"`
	// LastMessageId 最新消息 uuid，与 LastMessageAt 组成水位线
	LastMessageId int64 `gorm:"column:last_message_id;not null;comment:最近消息id"`
	// LastMessage 会话列表摘要
	LastMessage string `gorm:"column:last_message;type:varchar(255);not null;comment:最新的消息"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversation"
}

// HasParticipant 判断用户是否为会话参与者
func (c *Conversation) HasParticipant(userId string) bool {
	if userId == "" {
		return false
	}
	return c.TeacherId == userId || c.ParentId == userId || c.StudentId == userId
}

// Participants 返回所有参与者 id（去掉空值）
func (c *Conversation) Participants() []string {
	ids := make([]string, 0, 3)
	for _, id := range []string{c.TeacherId, c.ParentId, c.StudentId} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Writable 只读或已停用的会话不能发送消息
func (c *Conversation) Writable() bool {
	return c.IsActive && !c.IsReadOnly
}
