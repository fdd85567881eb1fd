package repository

import (
	"context"

	"tutor_chat_server/internal/model"

	"gorm.io/gorm"
)

type bookingEventRepository struct {
	db *gorm.DB
}

// NewBookingEventRepository 创建 BookingEventRepository 实例
func NewBookingEventRepository(db *gorm.DB) BookingEventRepository {
	return &bookingEventRepository{db: db}
}

func (r *bookingEventRepository) Exists(ctx context.Context, eventId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BookingEvent{}).
		Where("event_id = ?", eventId).
		Count(&count).Error
	if err != nil {
		return false, wrapDBErrorf(err, "查询预约事件 event_id=%s", eventId)
	}
	return count > 0, nil
}

func (r *bookingEventRepository) Create(ctx context.Context, ev *model.BookingEvent) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return wrapDBErrorf(err, "记录预约事件 event_id=%s", ev.EventId)
	}
	return nil
}
