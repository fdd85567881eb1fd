package repository

import (
	"context"

	"tutor_chat_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// attachmentsInOrder 预加载附件并保持上传顺序
func attachmentsInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

// Create 附件通过关联一并插入，调用方负责放在事务内
func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return wrapDBErrorf(err, "写入消息 conversation=%s", msg.ConversationId)
	}
	return nil
}

func (r *messageRepository) FindByUuid(ctx context.Context, uuid int64) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments", attachmentsInOrder).
		Where("uuid = ?", uuid).
		First(&msg).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询消息 uuid=%d", uuid)
	}
	return &msg, nil
}

func (r *messageRepository) FindByClientMsgId(ctx context.Context, conversationId, sendId, clientMsgId string) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments", attachmentsInOrder).
		Where("conversation_id = ? AND send_id = ? AND client_msg_id = ?", conversationId, sendId, clientMsgId).
		First(&msg).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询幂等消息 conversation=%s client_msg_id=%s", conversationId, clientMsgId)
	}
	return &msg, nil
}

// PageBefore 依赖 idx_msg_conv_key (conversation_id, send_at) 索引
func (r *messageRepository) PageBefore(ctx context.Context, conversationId string, before *MessageKey, limit int) ([]model.Message, error) {
	q := r.db.WithContext(ctx).
		Preload("Attachments", attachmentsInOrder).
		Where("conversation_id = ?", conversationId)
	if before != nil {
		q = q.Where("(send_at < ? OR (send_at = ? AND uuid < ?))", before.SendAt, before.SendAt, before.Uuid)
	}
	var msgs []model.Message
	err := q.Order("send_at DESC").Order("uuid DESC").Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "分页查询消息 conversation=%s", conversationId)
	}
	return msgs, nil
}

func (r *messageRepository) CountByConversation(ctx context.Context, conversationId string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ?", conversationId).
		Count(&total).Error
	if err != nil {
		return 0, wrapDBErrorf(err, "统计消息 conversation=%s", conversationId)
	}
	return total, nil
}
