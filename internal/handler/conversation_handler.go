// Package handler 提供 HTTP 请求处理器
// 本文件处理会话相关的 API 请求
package handler

import (
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 会话请求处理器
type ConversationHandler struct {
	convSvc service.ConversationService
}

// NewConversationHandler 创建会话处理器实例
func NewConversationHandler(convSvc service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convSvc: convSvc}
}

// CreateConversation 建会话
// POST /conversation/create
// 请求体: request.CreateConversationRequest
// 响应: respond.ConversationRespond，已存在时返回已有会话
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req request.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.convSvc.CreateConversation(c.Request.Context(), ident, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ListConversations 当前用户的会话列表
// GET /conversation/list
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	data, err := h.convSvc.ListConversationsForUser(c.Request.Context(), ident.UserId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// GetConversation 会话详情
// GET /conversation/get?conversation_id=xxx
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req request.GetConversationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.convSvc.GetConversation(c.Request.Context(), ident, req.ConversationId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
