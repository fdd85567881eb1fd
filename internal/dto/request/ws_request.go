package request

import "encoding/json"

// WebSocket 客户端动作
const (
	WsActionJoin        = "join"
	WsActionLeave       = "leave"
	WsActionSendMessage = "send_message"
	WsActionTypingStart = "typing_start"
	WsActionTypingStop  = "typing_stop"
	WsActionPing        = "ping"
)

// WsFrame 客户端上行帧
// request_id 由客户端生成，服务端原样放回 ack / error
type WsFrame struct {
	Action         string              `json:"action"`
	RequestId      string              `json:"request_id"`
	ConversationId string              `json:"conversation_id"`
	Content        string              `json:"content"`
	Attachments    []AttachmentRequest `json:"attachments"`
	ClientMsgId    string              `json:"client_msg_id"`
}

// ParseWsFrame 解析上行帧
func ParseWsFrame(data []byte) (*WsFrame, error) {
	var f WsFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
