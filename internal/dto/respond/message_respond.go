package respond

import "tutor_chat_server/internal/model"

// AttachmentRespond 附件信息，上传接口也返回此结构
type AttachmentRespond struct {
	FileName string `json:"file_name"`
	FileUrl  string `json:"file_url"`
	FileSize int64  `json:"file_size"`
	FileType string `json:"file_type"`
}

// MessageRespond 消息
// 同时作为 send_message 的 ack 和 messageReceived 推送的数据
type MessageRespond struct {
	MessageId      int64               `json:"message_id,string"`
	ConversationId string              `json:"conversation_id"`
	SendId         string              `json:"send_id"`
	SendName       string              `json:"send_name"`
	Content        string              `json:"content"`
	SendAt         int64               `json:"send_at"`
	ClientMsgId    string              `json:"client_msg_id,omitempty"`
	Attachments    []AttachmentRespond `json:"attachments"`
}

// PageMessagesRespond 分页结果，next_cursor 为 null 表示没有更早的消息
type PageMessagesRespond struct {
	Messages   []MessageRespond `json:"messages"`
	NextCursor *string          `json:"next_cursor"`
	Total      int64            `json:"total"`
}

// NewMessageRespond 模型转响应
func NewMessageRespond(m *model.Message) MessageRespond {
	rsp := MessageRespond{
		MessageId:      m.Uuid,
		ConversationId: m.ConversationId,
		SendId:         m.SendId,
		SendName:       m.SendName,
		Content:        m.Content,
		SendAt:         m.SendAt,
		Attachments:    make([]AttachmentRespond, 0, len(m.Attachments)),
	}
	if m.ClientMsgId != nil {
		rsp.ClientMsgId = *m.ClientMsgId
	}
	for _, a := range m.Attachments {
		rsp.Attachments = append(rsp.Attachments, AttachmentRespond{
			FileName: a.FileName,
			FileUrl:  a.FileUrl,
			FileSize: a.FileSize,
			FileType: a.FileType,
		})
	}
	return rsp
}
