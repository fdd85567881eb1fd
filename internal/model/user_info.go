// Package model 定义数据库实体模型
// 本文件定义用户信息模型，是身份服务用户目录的只读投影
package model

import (
	"gorm.io/gorm"
)

// UserInfo 用户信息
// 对应数据库 user_info 表，由预约事件 upsert，聊天核心只读
type UserInfo struct {
	gorm.Model

	// Uuid 身份服务下发的用户 ID
	Uuid string `gorm:"column:uuid;uniqueIndex;type:varchar(64);not null;comment:用户唯一id"`

	// Nickname 展示名称，会话列表和输入状态推送使用
	Nickname string `gorm:"column:nickname;type:varchar(64);not null;comment:昵称"`

	// Role admin / teacher / parent / student
	Role string `gorm:"column:role;type:varchar(16);index;not null;comment:角色"`

	// Status 0=正常, 1=禁用
	Status int8 `gorm:"column:status;not null;comment:状态，0.正常，1.禁用"`
}

// TableName 指定表名
func (UserInfo) TableName() string {
	return "user_info"
}

// Tables 返回需要自动迁移的全部模型
func Tables() []interface{} {
	return []interface{}{
		&UserInfo{},
		&TeachingRelation{},
		&Conversation{},
		&Message{},
		&Attachment{},
		&ReadPointer{},
		&BookingEvent{},
	}
}
