// Package handler 提供 HTTP 请求处理器
// 本文件处理消息历史和附件上传，实时发送走 WebSocket
package handler

import (
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/service"
	"tutor_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	msgSvc service.MessageService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(msgSvc service.MessageService) *MessageHandler {
	return &MessageHandler{msgSvc: msgSvc}
}

// PageMessages 历史消息，新到旧
// GET /message/page?conversation_id=xxx&cursor=xxx&page_size=20
// 响应: respond.PageMessagesRespond，next_cursor 为 null 时没有更早的消息
func (h *MessageHandler) PageMessages(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req request.PageMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.msgSvc.Page(c.Request.Context(), ident, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// UploadAttachment 上传附件
// POST /message/upload (multipart: conversation_id, file)
// 响应: respond.AttachmentRespond，客户端随后放进 send_message.attachments
func (h *MessageHandler) UploadAttachment(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req request.UploadAttachmentRequest
	if err := c.ShouldBind(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		HandleError(c, errorx.Wrap(err, errorx.CodeInvalidParam, "缺少上传文件"))
		return
	}
	data, err := h.msgSvc.UploadAttachment(c.Request.Context(), ident, req.ConversationId, fileHeader)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
