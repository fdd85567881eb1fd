// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"context"

	"tutor_chat_server/internal/model"

	"gorm.io/gorm"
)

// MessageKey 消息排序键 (send_at, uuid)
type MessageKey struct {
	SendAt int64
	Uuid   int64
}

// Less 严格小于
func (k MessageKey) Less(o MessageKey) bool {
	if k.SendAt != o.SendAt {
		return k.SendAt < o.SendAt
	}
	return k.Uuid < o.Uuid
}

// UserRepository 用户目录投影
type UserRepository interface {
	// FindByUuid 根据 UUID 查找用户
	FindByUuid(ctx context.Context, uuid string) (*model.UserInfo, error)
	// FindByUuids 批量查找，用于会话列表展示名称
	FindByUuids(ctx context.Context, uuids []string) ([]model.UserInfo, error)
	// Upsert 按 uuid 插入或更新昵称和角色
	Upsert(ctx context.Context, user *model.UserInfo) error
}

// RelationRepository 教学关系数据访问接口
type RelationRepository interface {
	// ExistsBetween 老师与家长之间是否存在任意状态的关系
	ExistsBetween(ctx context.Context, teacherId, parentId string) (bool, error)
	// Find 精确查找一条关系
	Find(ctx context.Context, teacherId, parentId, studentId string) (*model.TeachingRelation, error)
	// Upsert 插入或更新状态
	Upsert(ctx context.Context, rel *model.TeachingRelation) error
}

// ConversationRepository 会话数据访问接口
type ConversationRepository interface {
	// FindByUuid 根据 UUID 查找会话
	FindByUuid(ctx context.Context, uuid string) (*model.Conversation, error)
	// FindByUuidForUpdate 事务内加行锁读取（SQLite 下忽略锁）
	FindByUuidForUpdate(ctx context.Context, uuid string) (*model.Conversation, error)
	// FindByPair 按唯一键查找
	FindByPair(ctx context.Context, kind int8, teacherId, counterpartId string) (*model.Conversation, error)
	// FindByParticipant 用户参与的所有会话，最近活跃在前
	FindByParticipant(ctx context.Context, userId string) ([]model.Conversation, error)
	// FindByTeacherAndParent 老师与家长之间的全部会话
	FindByTeacherAndParent(ctx context.Context, teacherId, parentId string) ([]model.Conversation, error)
	// Create 创建会话
	Create(ctx context.Context, conv *model.Conversation) error
	// UpdateReadOnly 设置只读标志，返回是否发生变化
	UpdateReadOnly(ctx context.Context, uuid string, readOnly bool) (bool, error)
	// UpdateActive 设置有效标志
	UpdateActive(ctx context.Context, uuid string, active bool) error
	// AdvanceLastMessage 推进最新消息水位线，只前进
	AdvanceLastMessage(ctx context.Context, uuid string, key MessageKey, preview string) error
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// Create 写入消息及其附件
	Create(ctx context.Context, msg *model.Message) error
	// FindByUuid 查找消息（含附件）
	FindByUuid(ctx context.Context, uuid int64) (*model.Message, error)
	// FindByClientMsgId 按幂等键查找
	FindByClientMsgId(ctx context.Context, conversationId, sendId, clientMsgId string) (*model.Message, error)
	// PageBefore 键集分页，返回严格早于 before 的消息，新消息在前
	// before 为 nil 时从最新开始
	PageBefore(ctx context.Context, conversationId string, before *MessageKey, limit int) ([]model.Message, error)
	// CountByConversation 会话消息总数
	CountByConversation(ctx context.Context, conversationId string) (int64, error)
}

// ReadPointerRepository 已读指针数据访问接口
type ReadPointerRepository interface {
	// Find 查找指针，不存在返回 NotFound
	Find(ctx context.Context, conversationId, userId string) (*model.ReadPointer, error)
	// Advance 条件推进，返回是否实际前进
	Advance(ctx context.Context, conversationId, userId string, key MessageKey) (bool, error)
	// CountUnread 单个会话未读数
	CountUnread(ctx context.Context, conversationId, userId string) (int64, error)
	// CountUnreadBatch 多个会话未读数，一次查询
	CountUnreadBatch(ctx context.Context, userId string, conversationIds []string) (map[string]int64, error)
}

// BookingEventRepository 预约事件去重表
type BookingEventRepository interface {
	// Exists 事件是否已处理
	Exists(ctx context.Context, eventId string) (bool, error)
	// Create 记录已处理事件，重复时返回 Duplicate
	Create(ctx context.Context, ev *model.BookingEvent) error
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db           *gorm.DB
	User         UserRepository
	Relation     RelationRepository
	Conversation ConversationRepository
	Message      MessageRepository
	ReadPointer  ReadPointerRepository
	BookingEvent BookingEventRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		User:         NewUserRepository(db),
		Relation:     NewRelationRepository(db),
		Conversation: NewConversationRepository(db),
		Message:      NewMessageRepository(db),
		ReadPointer:  NewReadPointerRepository(db),
		BookingEvent: NewBookingEventRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内必须只使用 txRepos，否则会绕开事务
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
