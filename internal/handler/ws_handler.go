// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 握手
package handler

import (
	"tutor_chat_server/internal/service/chat"

	"github.com/gin-gonic/gin"
)

// WsHandler WebSocket 处理器
type WsHandler struct {
	hub        *chat.Hub
	bufferSize int
}

// NewWsHandler bufferSize 为每个连接的下行缓冲，<=0 时用默认值
func NewWsHandler(hub *chat.Hub, bufferSize int) *WsHandler {
	return &WsHandler{hub: hub, bufferSize: bufferSize}
}

// Connect 升级为 WebSocket 连接，身份来自 JWTAuth
// GET /wss?token=xxx
// 连接建立后通过 join / send_message 等动作交互，阻塞到连接断开
func (h *WsHandler) Connect(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	h.hub.ServeWs(c.Writer, c.Request, ident, h.bufferSize)
}
