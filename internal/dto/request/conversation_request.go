package request

// CreateConversationRequest 创建会话请求
// 使用位置:
//   - internal/handler/conversation_handler.go: CreateConversation
//
// 家长发起时 target_id 为老师，老师发起时 target_id 为家长
// kind 可省略，由角色推断；显式传 course_linked 会被拒绝
type CreateConversationRequest struct {
	TargetId  string `json:"target_id" binding:"required,max=64"`
	StudentId string `json:"student_id" binding:"max=64"`
	Kind      string `json:"kind"`
}

// GetConversationRequest 查询单个会话
type GetConversationRequest struct {
	ConversationId string `form:"conversation_id" binding:"required"`
}
