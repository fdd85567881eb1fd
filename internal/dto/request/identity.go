package request

import "tutor_chat_server/pkg/enum/user_role_enum"

// Identity 经过身份服务校验的调用方
// HTTP 由 JWT 中间件写入上下文，WebSocket 在握手时确定并随连接保存
type Identity struct {
	UserId   string
	Role     user_role_enum.Role
	Nickname string
}
