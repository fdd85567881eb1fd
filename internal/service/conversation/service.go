// Package conversation 会话生命周期：创建、列表、只读切换，以及唯一的参与者鉴权入口
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tutor_chat_server/internal/dao/database/repository"
	myredis "tutor_chat_server/internal/dao/redis"
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/internal/model"
	"tutor_chat_server/pkg/constants"
	"tutor_chat_server/pkg/enum/conversation_kind_enum"
	"tutor_chat_server/pkg/errorx"
	"tutor_chat_server/pkg/util/random"
)

// conversationService 会话业务逻辑实现
// cache 可为 nil，此时列表每次查库
type conversationService struct {
	repos   *repository.Repositories
	cache   myredis.AsyncCacheService
	listTTL time.Duration
}

// NewConversationService 构造函数，注入所有依赖
func NewConversationService(repos *repository.Repositories, cacheService myredis.AsyncCacheService, listTTL time.Duration) *conversationService {
	if listTTL <= 0 {
		listTTL = 5 * time.Minute
	}
	return &conversationService{
		repos:   repos,
		cache:   cacheService,
		listTTL: listTTL,
	}
}

// CreateConversation 客户端建会话，已存在则返回已有会话
func (s *conversationService) CreateConversation(ctx context.Context, requester request.Identity, req request.CreateConversationRequest) (*respond.ConversationRespond, error) {
	p, err := s.resolveCreate(ctx, requester, req)
	if err != nil {
		return nil, err
	}
	conv, err := s.findOrCreate(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, conv, requester.UserId)
}

// CreateCourseConversation 预约确认后由系统调用，幂等
func (s *conversationService) CreateCourseConversation(ctx context.Context, teacherId, studentId, parentId string) (*model.Conversation, error) {
	if teacherId == "" || studentId == "" {
		return nil, errorx.New(errorx.CodeInvalidParticipants, "课程会话必须包含老师和学生")
	}
	conv, err := s.findOrCreate(ctx, &participants{
		kind:      conversation_kind_enum.CourseLinked,
		teacherId: teacherId,
		parentId:  parentId,
		studentId: studentId,
	})
	if err != nil {
		return nil, err
	}
	// 之前被停用的课程会话随新预约恢复
	if !conv.IsActive {
		if err := s.repos.Conversation.UpdateActive(ctx, conv.Uuid, true); err != nil {
			zap.L().Error("恢复课程会话失败", zap.String("conversation_id", conv.Uuid), zap.Error(err))
			return nil, errorx.ErrServerBusy
		}
		conv.IsActive = true
		s.invalidateLists(conv.Participants()...)
	}
	return conv, nil
}

// findOrCreate 先查后建，并发创建撞唯一索引时回查
func (s *conversationService) findOrCreate(ctx context.Context, p *participants) (*model.Conversation, error) {
	counterpart := counterpartOf(p.kind, p.parentId, p.studentId)

	existing, err := s.repos.Conversation.FindByPair(ctx, int8(p.kind), p.teacherId, counterpart)
	if err == nil {
		zap.L().Info("会话已存在，返回已有会话",
			zap.String("conversation_id", existing.Uuid),
			zap.String("kind", p.kind.String()),
		)
		return existing, nil
	}
	if !errorx.IsNotFound(err) {
		zap.L().Error("查询已有会话失败",
			zap.String("teacher_id", p.teacherId),
			zap.String("counterpart_id", counterpart),
			zap.Error(err),
		)
		return nil, errorx.ErrServerBusy
	}

	conv := &model.Conversation{
		Uuid:          fmt.Sprintf("C%s", random.GetNowAndLenRandomString(13)),
		Kind:          int8(p.kind),
		TeacherId:     p.teacherId,
		ParentId:      p.parentId,
		StudentId:     p.studentId,
		CounterpartId: counterpart,
		IsActive:      true,
	}
	if err := s.repos.Conversation.Create(ctx, conv); err != nil {
		if errorx.IsDuplicate(err) {
			existing, ferr := s.repos.Conversation.FindByPair(ctx, int8(p.kind), p.teacherId, counterpart)
			if ferr == nil {
				return existing, nil
			}
			err = ferr
		}
		zap.L().Error("创建会话失败",
			zap.String("teacher_id", p.teacherId),
			zap.String("counterpart_id", counterpart),
			zap.Error(err),
		)
		return nil, errorx.ErrServerBusy
	}

	zap.L().Info("会话已创建",
		zap.String("conversation_id", conv.Uuid),
		zap.String("kind", p.kind.String()),
		zap.String("teacher_id", conv.TeacherId),
	)
	s.invalidateLists(conv.Participants()...)
	return conv, nil
}

// cachedList 缓存内容带上写入时读到的版本号，版本已变的条目视为未命中
type cachedList struct {
	Version string                        `json:"v"`
	List    []respond.ConversationRespond `json:"list"`
}

// ListConversationsForUser 最近活跃在前，附带未读数
func (s *conversationService) ListConversationsForUser(ctx context.Context, userId string) ([]respond.ConversationRespond, error) {
	key := constants.CONVERSATION_LIST_KEY + userId
	version, cacheOK := "", s.cache != nil
	if cacheOK {
		// 版本号必须在查库之前读取
		v, err := s.cache.Get(ctx, constants.CONVERSATION_LIST_VERSION_KEY+userId)
		if err != nil {
			zap.L().Warn("读取会话列表版本失败", zap.String("user_id", userId), zap.Error(err))
			cacheOK = false
		}
		version = v
	}
	if cacheOK {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var entry cachedList
			if err := json.Unmarshal([]byte(cached), &entry); err == nil && entry.Version == version {
				return entry.List, nil
			}
		} else if err != nil {
			zap.L().Warn("读取会话列表缓存失败", zap.String("user_id", userId), zap.Error(err))
		}
	}

	convs, err := s.repos.Conversation.FindByParticipant(ctx, userId)
	if err != nil {
		zap.L().Error("查询会话列表失败", zap.String("user_id", userId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	ids := make([]string, 0, len(convs))
	for i := range convs {
		ids = append(ids, convs[i].Uuid)
	}
	unread, err := s.repos.ReadPointer.CountUnreadBatch(ctx, userId, ids)
	if err != nil {
		zap.L().Error("统计未读失败", zap.String("user_id", userId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	names := s.displayNames(ctx, convs...)

	list := make([]respond.ConversationRespond, 0, len(convs))
	for i := range convs {
		list = append(list, respond.NewConversationRespond(&convs[i], names, unread[convs[i].Uuid]))
	}

	if cacheOK {
		if data, err := json.Marshal(cachedList{Version: version, List: list}); err == nil {
			if err := s.cache.Set(ctx, key, string(data), s.listTTL); err != nil {
				zap.L().Warn("写入会话列表缓存失败", zap.String("user_id", userId), zap.Error(err))
			}
		}
	}
	return list, nil
}

// GetConversation 参与者或管理员可查看
func (s *conversationService) GetConversation(ctx context.Context, requester request.Identity, conversationId string) (*respond.ConversationRespond, error) {
	conv, err := s.AuthorizeReader(ctx, requester, conversationId)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, conv, requester.UserId)
}

func (s *conversationService) describe(ctx context.Context, conv *model.Conversation, viewerId string) (*respond.ConversationRespond, error) {
	var unread int64
	if conv.HasParticipant(viewerId) {
		n, err := s.repos.ReadPointer.CountUnread(ctx, conv.Uuid, viewerId)
		if err != nil {
			zap.L().Error("统计未读失败", zap.String("conversation_id", conv.Uuid), zap.Error(err))
			return nil, errorx.ErrServerBusy
		}
		unread = n
	}
	rsp := respond.NewConversationRespond(conv, s.displayNames(ctx, *conv), unread)
	return &rsp, nil
}

// displayNames 展示名查询失败不影响主流程
func (s *conversationService) displayNames(ctx context.Context, convs ...model.Conversation) map[string]string {
	seen := make(map[string]struct{})
	var ids []string
	for i := range convs {
		for _, id := range convs[i].Participants() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	names := make(map[string]string, len(ids))
	users, err := s.repos.User.FindByUuids(ctx, ids)
	if err != nil {
		zap.L().Warn("查询用户昵称失败", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.Uuid] = u.Nickname
	}
	return names
}

// SetReadOnly 幂等，状态真正变化时才清缓存
func (s *conversationService) SetReadOnly(ctx context.Context, conversationId string, readOnly bool) error {
	conv, err := s.find(ctx, conversationId)
	if err != nil {
		return err
	}
	changed, err := s.repos.Conversation.UpdateReadOnly(ctx, conversationId, readOnly)
	if err != nil {
		zap.L().Error("更新会话只读失败", zap.String("conversation_id", conversationId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	if changed {
		zap.L().Info("会话只读状态变更",
			zap.String("conversation_id", conversationId),
			zap.Bool("read_only", readOnly),
		)
		s.invalidateLists(conv.Participants()...)
	}
	return nil
}

// Deactivate 停用会话，不删除
func (s *conversationService) Deactivate(ctx context.Context, conversationId string) error {
	conv, err := s.find(ctx, conversationId)
	if err != nil {
		return err
	}
	if !conv.IsActive {
		return nil
	}
	if err := s.repos.Conversation.UpdateActive(ctx, conversationId, false); err != nil {
		zap.L().Error("停用会话失败", zap.String("conversation_id", conversationId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	zap.L().Info("会话已停用", zap.String("conversation_id", conversationId))
	s.invalidateLists(conv.Participants()...)
	return nil
}

// DeactivateBetween 教学关系被撤销时停用双方全部会话
func (s *conversationService) DeactivateBetween(ctx context.Context, teacherId, parentId string) error {
	convs, err := s.repos.Conversation.FindByTeacherAndParent(ctx, teacherId, parentId)
	if err != nil {
		zap.L().Error("查询会话失败", zap.String("teacher_id", teacherId), zap.String("parent_id", parentId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	for i := range convs {
		if err := s.Deactivate(ctx, convs[i].Uuid); err != nil {
			return err
		}
	}
	return nil
}

// AuthorizeParticipant 只有参与者可以加入、发送、标记已读
func (s *conversationService) AuthorizeParticipant(ctx context.Context, userId, conversationId string) (*model.Conversation, error) {
	conv, err := s.find(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userId) {
		zap.L().Warn("非会话参与者",
			zap.String("conversation_id", conversationId),
			zap.String("user_id", userId),
		)
		return nil, errorx.ErrForbidden
	}
	return conv, nil
}

// AuthorizeReader 参与者或管理员
func (s *conversationService) AuthorizeReader(ctx context.Context, requester request.Identity, conversationId string) (*model.Conversation, error) {
	conv, err := s.find(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if !canRead(requester, conv.HasParticipant(requester.UserId)) {
		return nil, errorx.ErrForbidden
	}
	return conv, nil
}

// AuthorizeSender 先判参与者，再判只读/停用
func (s *conversationService) AuthorizeSender(ctx context.Context, userId, conversationId string) (*model.Conversation, error) {
	conv, err := s.AuthorizeParticipant(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	if !conv.Writable() {
		return nil, errorx.ErrReadOnlyConversation
	}
	return conv, nil
}

func (s *conversationService) find(ctx context.Context, conversationId string) (*model.Conversation, error) {
	conv, err := s.repos.Conversation.FindByUuid(ctx, conversationId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeNotFound, "会话 %s 不存在", conversationId)
		}
		zap.L().Error("查询会话失败", zap.String("conversation_id", conversationId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return conv, nil
}

// InvalidateLists 供消息、已读等写路径调用
func (s *conversationService) InvalidateLists(userIds ...string) {
	s.invalidateLists(userIds...)
}

func (s *conversationService) invalidateLists(userIds ...string) {
	if s.cache == nil || len(userIds) == 0 {
		return
	}
	ids := append([]string(nil), userIds...)
	s.cache.SubmitTask(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Minute)
		defer cancel()
		// 先换版本再删键：与列表查询并发时，查询写回的旧条目版本对不上，不会被读到
		version := random.GetNowAndLenRandomString(10)
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			if err := s.cache.Set(ctx, constants.CONVERSATION_LIST_VERSION_KEY+id, version, 2*s.listTTL); err != nil {
				zap.L().Warn("更新会话列表版本失败", zap.String("user_id", id), zap.Error(err))
			}
			keys = append(keys, constants.CONVERSATION_LIST_KEY+id)
		}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			zap.L().Warn("清理会话列表缓存失败", zap.Strings("keys", keys), zap.Error(err))
		}
	})
}
