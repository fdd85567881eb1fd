package chat

import (
	"encoding/json"

	"tutor_chat_server/internal/dto/respond"
)

func messagePush(msg respond.MessageRespond) ([]byte, error) {
	return json.Marshal(respond.WsPush{Type: respond.WsTypeMessageReceived, Data: msg})
}

func typingPush(typ string, data respond.TypingRespond) ([]byte, error) {
	return json.Marshal(respond.WsPush{Type: typ, Data: data})
}

func ackReply(requestId string, data any) []byte {
	b, _ := json.Marshal(respond.WsReply{Type: respond.WsTypeAck, RequestId: requestId, Data: data})
	return b
}

func errorReply(requestId string, code int, msg string) []byte {
	b, _ := json.Marshal(respond.WsReply{Type: respond.WsTypeError, RequestId: requestId, Code: code, Msg: msg})
	return b
}

func pongReply(requestId string) []byte {
	b, _ := json.Marshal(respond.WsReply{Type: respond.WsTypePong, RequestId: requestId})
	return b
}
