package request

// AttachmentRequest 发送消息时携带的附件（先调用上传接口获得）
type AttachmentRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FileUrl  string `json:"file_url" binding:"required"`
	FileSize int64  `json:"file_size" binding:"gte=0"`
	FileType string `json:"file_type" binding:"required"`
}

// SendMessageRequest 发送消息 (WebSocket send_message)
// 使用位置:
//   - internal/service/chat/hub.go: SendMessage
//   - internal/service/message/service.go: Append
type SendMessageRequest struct {
	ConversationId string              `json:"conversation_id"`
	Content        string              `json:"content"`
	Attachments    []AttachmentRequest `json:"attachments"`
	ClientMsgId    string              `json:"client_msg_id"`
}

// PageMessagesRequest 历史消息分页
// cursor 为上一页返回的 next_cursor，首次为空
type PageMessagesRequest struct {
	ConversationId string `form:"conversation_id" binding:"required"`
	Cursor         string `form:"cursor"`
	PageSize       int    `form:"page_size"`
}

// UploadAttachmentRequest 上传附件
type UploadAttachmentRequest struct {
	ConversationId string `form:"conversation_id" binding:"required"`
}
