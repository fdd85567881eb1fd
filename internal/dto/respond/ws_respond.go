package respond

// 下行帧类型
const (
	WsTypeAck               = "ack"
	WsTypeError             = "error"
	WsTypePong              = "pong"
	WsTypeMessageReceived   = "messageReceived"
	WsTypeUserTyping        = "userTyping"
	WsTypeUserStoppedTyping = "userStoppedTyping"
)

// WsReply 对某个请求的应答
type WsReply struct {
	Type      string `json:"type"`
	RequestId string `json:"request_id,omitempty"`
	Code      int    `json:"code,omitempty"`
	Msg       string `json:"msg,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// WsPush 服务端主动推送
type WsPush struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// TypingRespond 输入状态推送数据
type TypingRespond struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	DisplayName    string `json:"display_name,omitempty"`
}
