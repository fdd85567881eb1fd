// Package router 提供 HTTP 路由注册
// 本文件定义消息相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息相关路由（需要认证）
// 发送消息走 WebSocket，这里只有历史查询和附件上传
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	messageGroup := rg.Group("/message")
	{
		messageGroup.GET("/page", rt.handlers.Message.PageMessages)        // 历史消息分页
		messageGroup.POST("/upload", rt.handlers.Message.UploadAttachment) // 上传附件
	}
}
