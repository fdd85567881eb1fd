package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterReadRoutes 注册已读相关路由（需要认证）
func (rt *Router) RegisterReadRoutes(rg *gin.RouterGroup) {
	readGroup := rg.Group("/read")
	{
		readGroup.POST("/mark", rt.handlers.Read.MarkRead)
		readGroup.GET("/unread", rt.handlers.Read.UnreadCount)
		readGroup.GET("/unreadAll", rt.handlers.Read.UnreadCounts)
	}
}
