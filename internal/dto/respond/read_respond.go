package respond

// UnreadRespond 单个会话未读数
type UnreadRespond struct {
	ConversationId string `json:"conversation_id"`
	UnreadCount    int64  `json:"unread_count"`
}

// MarkReadRespond advanced 为 false 表示指针已在更后的位置
type MarkReadRespond struct {
	Advanced bool `json:"advanced"`
}
