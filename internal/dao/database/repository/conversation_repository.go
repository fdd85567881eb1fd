package repository

import (
	"context"

	"tutor_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建 ConversationRepository 实例
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) FindByUuid(ctx context.Context, uuid string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&conv).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &conv, nil
}

func (r *conversationRepository) FindByUuidForUpdate(ctx context.Context, uuid string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid = ?", uuid).
		First(&conv).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "锁定会话 uuid=%s", uuid)
	}
	return &conv, nil
}

func (r *conversationRepository) FindByPair(ctx context.Context, kind int8, teacherId, counterpartId string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("kind = ? AND teacher_id = ? AND counterpart_id = ?", kind, teacherId, counterpartId).
		First(&conv).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询会话 kind=%d teacher=%s counterpart=%s", kind, teacherId, counterpartId)
	}
	return &conv, nil
}

// FindByParticipant 最近有消息的排前面，没有消息的按创建时间
func (r *conversationRepository) FindByParticipant(ctx context.Context, userId string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? OR parent_id = ? OR student_id = ?", userId, userId, userId).
		Order("last_message_at DESC").
		Order("id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询会话列表 user=%s", userId)
	}
	return convs, nil
}

func (r *conversationRepository) FindByTeacherAndParent(ctx context.Context, teacherId, parentId string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND parent_id = ?", teacherId, parentId).
		Find(&convs).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询会话 teacher=%s parent=%s", teacherId, parentId)
	}
	return convs, nil
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return wrapDBError(err, "创建会话")
	}
	return nil
}

func (r *conversationRepository) UpdateReadOnly(ctx context.Context, uuid string, readOnly bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("uuid = ? AND is_read_only <> ?", uuid, readOnly).
		Update("is_read_only", readOnly)
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "更新会话只读 uuid=%s", uuid)
	}
	return res.RowsAffected > 0, nil
}

func (r *conversationRepository) UpdateActive(ctx context.Context, uuid string, active bool) error {
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("uuid = ?", uuid).
		Update("is_active", active).Error
	if err != nil {
		return wrapDBErrorf(err, "更新会话状态 uuid=%s", uuid)
	}
	return nil
}

// AdvanceLastMessage 条件更新，旧键不会覆盖新键
func (r *conversationRepository) AdvanceLastMessage(ctx context.Context, uuid string, key MessageKey, preview string) error {
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("uuid = ?", uuid).
		Where("(last_message_at < ? OR (last_message_at = ? AND last_message_id < ?))", key.SendAt, key.SendAt, key.Uuid).
		Updates(map[string]interface{}{
			"last_message_at": key.SendAt,
			"last_message_id": key.Uuid,
			"last_message":    preview,
		}).Error
	if err != nil {
		return wrapDBErrorf(err, "更新会话最新消息 uuid=%s", uuid)
	}
	return nil
}
