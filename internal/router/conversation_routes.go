// Package router 提供 HTTP 路由注册
// 本文件定义会话相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterConversationRoutes 注册会话相关路由（需要认证）
func (rt *Router) RegisterConversationRoutes(rg *gin.RouterGroup) {
	convGroup := rg.Group("/conversation")
	{
		convGroup.POST("/create", rt.handlers.Conversation.CreateConversation) // 建会话，已存在则返回
		convGroup.GET("/list", rt.handlers.Conversation.ListConversations)     // 我的会话列表
		convGroup.GET("/get", rt.handlers.Conversation.GetConversation)        // 会话详情
	}
}
