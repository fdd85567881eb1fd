// Package handler 提供 HTTP 请求处理器
// 本文件处理已读与未读数
package handler

import (
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// ReadHandler 已读状态请求处理器
type ReadHandler struct {
	readSvc service.ReadStateService
}

// NewReadHandler 创建已读处理器实例
func NewReadHandler(readSvc service.ReadStateService) *ReadHandler {
	return &ReadHandler{readSvc: readSvc}
}

// MarkRead 标记已读到某条消息，指针只前进不后退
// POST /read/mark
func (h *ReadHandler) MarkRead(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req request.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	advanced, err := h.readSvc.MarkRead(c.Request.Context(), req.ConversationId, ident.UserId, req.MessageId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.MarkReadRespond{Advanced: advanced})
}

// UnreadCount 单会话未读数
// GET /read/unread?conversation_id=xxx
func (h *ReadHandler) UnreadCount(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req request.UnreadCountRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	n, err := h.readSvc.UnreadCount(c.Request.Context(), req.ConversationId, ident.UserId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.UnreadRespond{ConversationId: req.ConversationId, UnreadCount: n})
}

// UnreadCounts 当前用户所有会话的未读数
// GET /read/unreadAll
func (h *ReadHandler) UnreadCounts(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	data, err := h.readSvc.UnreadCountsForUser(c.Request.Context(), ident.UserId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
