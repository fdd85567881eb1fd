package repository

import (
	"context"

	"tutor_chat_server/internal/model"
	"tutor_chat_server/pkg/errorx"

	"gorm.io/gorm"
)

type readPointerRepository struct {
	db *gorm.DB
}

// NewReadPointerRepository 创建 ReadPointerRepository 实例
func NewReadPointerRepository(db *gorm.DB) ReadPointerRepository {
	return &readPointerRepository{db: db}
}

func (r *readPointerRepository) Find(ctx context.Context, conversationId, userId string) (*model.ReadPointer, error) {
	var rp model.ReadPointer
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		First(&rp).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询已读指针 conversation=%s user=%s", conversationId, userId)
	}
	return &rp, nil
}

// Advance 先条件更新，没有行受影响再尝试插入
// 并发插入撞唯一索引时回到条件更新
func (r *readPointerRepository) Advance(ctx context.Context, conversationId, userId string, key MessageKey) (bool, error) {
	advanced, err := r.advanceExisting(ctx, conversationId, userId, key)
	if err != nil || advanced {
		return advanced, err
	}

	// 已存在但不需要前进
	if _, err := r.Find(ctx, conversationId, userId); err == nil {
		return false, nil
	} else if !errorx.IsNotFound(err) {
		return false, err
	}

	rp := &model.ReadPointer{
		ConversationId:    conversationId,
		UserId:            userId,
		LastReadAt:        key.SendAt,
		LastReadMessageId: key.Uuid,
	}
	if err := r.db.WithContext(ctx).Create(rp).Error; err != nil {
		wrapped := wrapDBErrorf(err, "创建已读指针 conversation=%s user=%s", conversationId, userId)
		if errorx.IsDuplicate(wrapped) {
			return r.advanceExisting(ctx, conversationId, userId, key)
		}
		return false, wrapped
	}
	return true, nil
}

func (r *readPointerRepository) advanceExisting(ctx context.Context, conversationId, userId string, key MessageKey) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.ReadPointer{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Where("(last_read_at < ? OR (last_read_at = ? AND last_read_message_id < ?))", key.SendAt, key.SendAt, key.Uuid).
		Updates(map[string]interface{}{
			"last_read_at":         key.SendAt,
			"last_read_message_id": key.Uuid,
		})
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "推进已读指针 conversation=%s user=%s", conversationId, userId)
	}
	return res.RowsAffected > 0, nil
}

func (r *readPointerRepository) CountUnread(ctx context.Context, conversationId, userId string) (int64, error) {
	counts, err := r.CountUnreadBatch(ctx, userId, []string{conversationId})
	if err != nil {
		return 0, err
	}
	return counts[conversationId], nil
}

// unreadSQL 没有指针时整段会话（他人消息）都算未读
const unreadSQL = `SELECT m.conversation_id AS conversation_id, COUNT(*) AS unread
FROM message m
LEFT JOIN read_pointer r
  ON r.conversation_id = m.conversation_id AND r.user_id = ? AND r.deleted_at IS NULL
WHERE m.conversation_id IN ? AND m.send_id <> ? AND m.deleted_at IS NULL
  AND (r.id IS NULL OR m.send_at > r.last_read_at OR (m.send_at = r.last_read_at AND m.uuid > r.last_read_message_id))
GROUP BY m.conversation_id`

type unreadRow struct {
	ConversationId string
	Unread         int64
}

// CountUnreadBatch 未出现在结果中的会话未读数为 0
func (r *readPointerRepository) CountUnreadBatch(ctx context.Context, userId string, conversationIds []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(conversationIds))
	if len(conversationIds) == 0 {
		return counts, nil
	}
	var rows []unreadRow
	if err := r.db.WithContext(ctx).Raw(unreadSQL, userId, conversationIds, userId).Scan(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "统计未读 user=%s", userId)
	}
	for _, row := range rows {
		counts[row.ConversationId] = row.Unread
	}
	return counts, nil
}
