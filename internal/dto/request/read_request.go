package request

// MarkReadRequest 标记已读
// message_id 以字符串传输，避免 JavaScript 精度丢失
type MarkReadRequest struct {
	ConversationId string `json:"conversation_id" binding:"required"`
	MessageId      int64  `json:"message_id,string" binding:"required"`
}

// UnreadCountRequest 单会话未读数
type UnreadCountRequest struct {
	ConversationId string `form:"conversation_id" binding:"required"`
}
