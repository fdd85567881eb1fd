package booking

import (
	"tutor_chat_server/pkg/enum/user_role_enum"
)

// 预约事件类型，同时也是 RabbitMQ 的 routing key
const (
	EventPending   = "booking.pending"
	EventConfirmed = "booking.confirmed"
	EventEnded     = "booking.ended"
	EventCancelled = "booking.cancelled"
	EventRevoked   = "relation.revoked"
)

// Party 事件中的一方
type Party struct {
	Id       string `json:"id"`
	Nickname string `json:"nickname"`
}

// Event 预约服务发布的事件
type Event struct {
	EventId                 string `json:"event_id"`
	Type                    string `json:"type"`
	Teacher                 Party  `json:"teacher"`
	Student                 Party  `json:"student"`
	Parent                  *Party `json:"parent,omitempty"`
	RemainingActiveBookings int    `json:"remaining_active_bookings"`
	OccurredAt              int64  `json:"occurred_at"`
}

func (e *Event) parentId() string {
	if e.Parent == nil {
		return ""
	}
	return e.Parent.Id
}

// parties 需要写入用户目录的各方
func (e *Event) parties() map[user_role_enum.Role]Party {
	m := map[user_role_enum.Role]Party{
		user_role_enum.Teacher: e.Teacher,
		user_role_enum.Student: e.Student,
	}
	if e.Parent != nil && e.Parent.Id != "" {
		m[user_role_enum.Parent] = *e.Parent
	}
	return m
}
