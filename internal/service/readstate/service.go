// Package readstate 已读指针：单调推进与未读统计
package readstate

import (
	"context"

	"go.uber.org/zap"

	"tutor_chat_server/internal/dao/database/repository"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/internal/model"
	"tutor_chat_server/pkg/errorx"
	"tutor_chat_server/pkg/util/keylock"
)

// ParticipantAuthorizer 由会话服务实现
type ParticipantAuthorizer interface {
	AuthorizeParticipant(ctx context.Context, userId, conversationId string) (*model.Conversation, error)
	InvalidateLists(userIds ...string)
}

type readStateService struct {
	repos *repository.Repositories
	auth  ParticipantAuthorizer
	locks *keylock.KeyLock
}

// NewReadStateService 构造函数
func NewReadStateService(repos *repository.Repositories, auth ParticipantAuthorizer) *readStateService {
	return &readStateService{
		repos: repos,
		auth:  auth,
		locks: keylock.New(),
	}
}

// MarkRead 把指针推进到 messageId，已在其后时不动
// 返回值表示指针是否实际前进
func (s *readStateService) MarkRead(ctx context.Context, conversationId, userId string, messageId int64) (bool, error) {
	if _, err := s.auth.AuthorizeParticipant(ctx, userId, conversationId); err != nil {
		return false, err
	}

	msg, err := s.repos.Message.FindByUuid(ctx, messageId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return false, errorx.Newf(errorx.CodeNotFound, "消息 %d 不存在", messageId)
		}
		zap.L().Error("查询消息失败", zap.Int64("message_id", messageId), zap.Error(err))
		return false, errorx.ErrServerBusy
	}
	if msg.ConversationId != conversationId {
		return false, errorx.Newf(errorx.CodeNotFound, "消息 %d 不属于该会话", messageId)
	}

	unlock := s.locks.Lock(conversationId + ":" + userId)
	defer unlock()

	advanced, err := s.repos.ReadPointer.Advance(ctx, conversationId, userId,
		repository.MessageKey{SendAt: msg.SendAt, Uuid: msg.Uuid})
	if err != nil {
		zap.L().Error("推进已读指针失败",
			zap.String("conversation_id", conversationId),
			zap.String("user_id", userId),
			zap.Error(err),
		)
		return false, errorx.ErrServerBusy
	}
	if advanced {
		s.auth.InvalidateLists(userId)
	}
	return advanced, nil
}

// UnreadCount 他人在指针之后发的消息数
func (s *readStateService) UnreadCount(ctx context.Context, conversationId, userId string) (int64, error) {
	if _, err := s.auth.AuthorizeParticipant(ctx, userId, conversationId); err != nil {
		return 0, err
	}
	n, err := s.repos.ReadPointer.CountUnread(ctx, conversationId, userId)
	if err != nil {
		zap.L().Error("统计未读失败", zap.String("conversation_id", conversationId), zap.Error(err))
		return 0, errorx.ErrServerBusy
	}
	return n, nil
}

// UnreadCountsForUser 用户全部会话的未读数，一次分组查询
func (s *readStateService) UnreadCountsForUser(ctx context.Context, userId string) ([]respond.UnreadRespond, error) {
	convs, err := s.repos.Conversation.FindByParticipant(ctx, userId)
	if err != nil {
		zap.L().Error("查询用户会话失败", zap.String("user_id", userId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.Uuid)
	}
	counts, err := s.repos.ReadPointer.CountUnreadBatch(ctx, userId, ids)
	if err != nil {
		zap.L().Error("批量统计未读失败", zap.String("user_id", userId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	rsp := make([]respond.UnreadRespond, 0, len(ids))
	for _, id := range ids {
		rsp = append(rsp, respond.UnreadRespond{ConversationId: id, UnreadCount: counts[id]})
	}
	return rsp, nil
}
