// Package booking 消费课程预约事件，维护用户目录、教学关系和课程会话的生命周期
package booking

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tutor_chat_server/internal/dao/database/repository"
	"tutor_chat_server/internal/model"
	"tutor_chat_server/pkg/enum/conversation_kind_enum"
	"tutor_chat_server/pkg/enum/relation_status_enum"
	"tutor_chat_server/pkg/errorx"
)

// ConversationLifecycle 由会话服务实现
type ConversationLifecycle interface {
	CreateCourseConversation(ctx context.Context, teacherId, studentId, parentId string) (*model.Conversation, error)
	SetReadOnly(ctx context.Context, conversationId string, readOnly bool) error
	Deactivate(ctx context.Context, conversationId string) error
	DeactivateBetween(ctx context.Context, teacherId, parentId string) error
}

type bookingService struct {
	repos *repository.Repositories
	convs ConversationLifecycle
}

// NewBookingService 构造函数
func NewBookingService(repos *repository.Repositories, convs ConversationLifecycle) *bookingService {
	return &bookingService{repos: repos, convs: convs}
}

// Handle 处理一条预约事件，按 event_id 去重
// 返回非 nil 错误时消息会被重新投递，各步骤都可重入
func (s *bookingService) Handle(ctx context.Context, ev Event) error {
	if ev.EventId == "" || ev.Teacher.Id == "" {
		zap.L().Warn("预约事件缺少必要字段，丢弃", zap.String("event_id", ev.EventId), zap.String("type", ev.Type))
		return nil
	}
	done, err := s.repos.BookingEvent.Exists(ctx, ev.EventId)
	if err != nil {
		return err
	}
	if done {
		zap.L().Debug("预约事件已处理", zap.String("event_id", ev.EventId))
		return nil
	}

	if err := s.apply(ctx, &ev); err != nil {
		if rejected(err) {
			// 重投也不会成功，丢弃
			zap.L().Warn("预约事件被拒绝",
				zap.String("event_id", ev.EventId),
				zap.String("type", ev.Type),
				zap.Error(err),
			)
			return nil
		}
		zap.L().Error("处理预约事件失败",
			zap.String("event_id", ev.EventId),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
		return err
	}

	payload, _ := json.Marshal(ev)
	err = s.repos.BookingEvent.Create(ctx, &model.BookingEvent{
		EventId: ev.EventId,
		Type:    ev.Type,
		Payload: datatypes.JSON(payload),
	})
	if err != nil && !errorx.IsDuplicate(err) {
		return err
	}
	zap.L().Info("预约事件处理完成",
		zap.String("event_id", ev.EventId),
		zap.String("type", ev.Type),
		zap.String("teacher_id", ev.Teacher.Id),
		zap.String("student_id", ev.Student.Id),
	)
	return nil
}

func (s *bookingService) apply(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case EventPending:
		if err := s.upsertUsers(ctx, ev); err != nil {
			return err
		}
		return s.setRelation(ctx, ev, relation_status_enum.Pending)

	case EventConfirmed:
		if err := s.upsertUsers(ctx, ev); err != nil {
			return err
		}
		if err := s.setRelation(ctx, ev, relation_status_enum.Active); err != nil {
			return err
		}
		conv, err := s.convs.CreateCourseConversation(ctx, ev.Teacher.Id, ev.Student.Id, ev.parentId())
		if err != nil {
			return err
		}
		return s.convs.SetReadOnly(ctx, conv.Uuid, false)

	case EventEnded, EventCancelled:
		if ev.RemainingActiveBookings > 0 {
			return nil
		}
		if err := s.setRelation(ctx, ev, relation_status_enum.Ended); err != nil {
			return err
		}
		conv, err := s.repos.Conversation.FindByPair(ctx, int8(conversation_kind_enum.CourseLinked), ev.Teacher.Id, ev.Student.Id)
		if err != nil {
			if errorx.IsNotFound(err) {
				return nil
			}
			return err
		}
		return s.convs.SetReadOnly(ctx, conv.Uuid, true)

	case EventRevoked:
		if err := s.setRelation(ctx, ev, relation_status_enum.Ended); err != nil {
			return err
		}
		if parentId := ev.parentId(); parentId != "" {
			return s.convs.DeactivateBetween(ctx, ev.Teacher.Id, parentId)
		}
		// 没有家长时只有课程会话
		conv, err := s.repos.Conversation.FindByPair(ctx, int8(conversation_kind_enum.CourseLinked), ev.Teacher.Id, ev.Student.Id)
		if err != nil {
			if errorx.IsNotFound(err) {
				return nil
			}
			return err
		}
		return s.convs.Deactivate(ctx, conv.Uuid)

	default:
		zap.L().Warn("未知的预约事件类型", zap.String("event_id", ev.EventId), zap.String("type", ev.Type))
		return nil
	}
}

func (s *bookingService) upsertUsers(ctx context.Context, ev *Event) error {
	for role, p := range ev.parties() {
		if p.Id == "" {
			continue
		}
		if err := s.repos.User.Upsert(ctx, &model.UserInfo{Uuid: p.Id, Nickname: p.Nickname, Role: role.String()}); err != nil {
			return err
		}
	}
	return nil
}

func (s *bookingService) setRelation(ctx context.Context, ev *Event, status int8) error {
	if ev.Student.Id == "" {
		return nil
	}
	return s.repos.Relation.Upsert(ctx, &model.TeachingRelation{
		TeacherId: ev.Teacher.Id,
		ParentId:  ev.parentId(),
		StudentId: ev.Student.Id,
		Status:    status,
	})
}

// rejected 事件内容本身不合法的业务错误
func rejected(err error) bool {
	switch errorx.GetCode(err) {
	case errorx.CodeInvalidParticipants, errorx.CodeInvalidParam, errorx.CodeForbidden:
		return true
	}
	return false
}
