package conversation

import (
	"context"

	"go.uber.org/zap"

	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/pkg/enum/conversation_kind_enum"
	"tutor_chat_server/pkg/enum/user_role_enum"
	"tutor_chat_server/pkg/errorx"
)

// participants 通过校验的参与者组合
type participants struct {
	kind      conversation_kind_enum.Kind
	teacherId string
	parentId  string
	studentId string
}

// counterpartOf 唯一性判定使用的对端
// 课程关联会话按学生区分，同一家长的多个孩子各有一条
func counterpartOf(kind conversation_kind_enum.Kind, parentId, studentId string) string {
	if kind == conversation_kind_enum.CourseLinked || parentId == "" {
		return studentId
	}
	return parentId
}

// resolveCreate 按角色校验客户端发起的建会话请求
// 所有角色分支只在这里出现
func (s *conversationService) resolveCreate(ctx context.Context, requester request.Identity, req request.CreateConversationRequest) (*participants, error) {
	var wantKind *conversation_kind_enum.Kind
	if req.Kind != "" {
		k, ok := conversation_kind_enum.Parse(req.Kind)
		if !ok {
			return nil, errorx.Newf(errorx.CodeInvalidParam, "未知会话类型 %s", req.Kind)
		}
		if k == conversation_kind_enum.CourseLinked {
			return nil, errorx.New(errorx.CodeForbidden, "课程会话只能由预约系统创建")
		}
		wantKind = &k
	}

	if req.TargetId == requester.UserId {
		return nil, errorx.New(errorx.CodeInvalidParticipants, "不能与自己建立会话")
	}

	switch requester.Role {
	case user_role_enum.Parent:
		if wantKind != nil && *wantKind != conversation_kind_enum.ParentInitiated {
			return nil, errorx.New(errorx.CodeInvalidParticipants, "家长只能发起家长会话")
		}
		if err := s.requireRole(ctx, req.TargetId, user_role_enum.Teacher); err != nil {
			return nil, err
		}
		if req.StudentId != "" {
			if err := s.requireRole(ctx, req.StudentId, user_role_enum.Student); err != nil {
				return nil, err
			}
		}
		return &participants{
			kind:      conversation_kind_enum.ParentInitiated,
			teacherId: req.TargetId,
			parentId:  requester.UserId,
			studentId: req.StudentId,
		}, nil

	case user_role_enum.Teacher:
		if wantKind != nil && *wantKind != conversation_kind_enum.TeacherInitiated {
			return nil, errorx.New(errorx.CodeInvalidParticipants, "老师只能发起老师会话")
		}
		if err := s.requireRole(ctx, req.TargetId, user_role_enum.Parent); err != nil {
			return nil, err
		}
		related, err := s.repos.Relation.ExistsBetween(ctx, requester.UserId, req.TargetId)
		if err != nil {
			zap.L().Error("查询教学关系失败",
				zap.String("teacher_id", requester.UserId),
				zap.String("parent_id", req.TargetId),
				zap.Error(err),
			)
			return nil, errorx.ErrServerBusy
		}
		if !related {
			return nil, errorx.New(errorx.CodeInvalidParticipants, "与该家长没有教学关系，无法发起会话")
		}
		if req.StudentId != "" {
			// 只能带上自己教过的、该家长的孩子
			if _, err := s.repos.Relation.Find(ctx, requester.UserId, req.TargetId, req.StudentId); err != nil {
				if errorx.IsNotFound(err) {
					return nil, errorx.Newf(errorx.CodeInvalidParticipants, "与学生 %s 没有教学关系", req.StudentId)
				}
				zap.L().Error("查询教学关系失败",
					zap.String("teacher_id", requester.UserId),
					zap.String("student_id", req.StudentId),
					zap.Error(err),
				)
				return nil, errorx.ErrServerBusy
			}
		}
		return &participants{
			kind:      conversation_kind_enum.TeacherInitiated,
			teacherId: requester.UserId,
			parentId:  req.TargetId,
			studentId: req.StudentId,
		}, nil

	default:
		// 学生、管理员以及未知角色不能主动建会话
		return nil, errorx.New(errorx.CodeForbidden, "当前角色不能发起会话")
	}
}

// requireRole 对端必须存在且角色匹配
func (s *conversationService) requireRole(ctx context.Context, userId string, role user_role_enum.Role) error {
	user, err := s.repos.User.FindByUuid(ctx, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.Newf(errorx.CodeNotFound, "用户 %s 不存在", userId)
		}
		zap.L().Error("查询用户失败", zap.String("user_id", userId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	if user.Role != role.String() {
		return errorx.Newf(errorx.CodeInvalidParticipants, "用户 %s 不是%s", userId, roleName(role))
	}
	return nil
}

func roleName(r user_role_enum.Role) string {
	switch r {
	case user_role_enum.Teacher:
		return "老师"
	case user_role_enum.Parent:
		return "家长"
	case user_role_enum.Student:
		return "学生"
	}
	return r.String()
}

// canRead 管理员可以只读查看任何会话
func canRead(requester request.Identity, isParticipant bool) bool {
	return isParticipant || requester.Role == user_role_enum.Admin
}
