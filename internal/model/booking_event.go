package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingEvent 已处理的预约事件
// event_id 唯一，用于 MQ 重投去重，同时保留原始负载便于排查
type BookingEvent struct {
	gorm.Model

	EventId string         `gorm:"column:event_id;type:varchar(64);uniqueIndex;not null;comment:事件id"`
	Type    string         `gorm:"column:type;type:varchar(32);not null;comment:事件类型"`
	Payload datatypes.JSON `gorm:"column:payload;comment:原始负载"`
}

// TableName 指定表名
func (BookingEvent) TableName() string {
	return "booking_event"
}
