// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"tutor_chat_server/internal/handler"
	"tutor_chat_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 持有所有 Handler，按模块注册路由
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由，在 https_server.Init() 中调用
// 除 /auth/refresh 外都需要 Access Token
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	rt.RegisterAuthRoutes(r)

	authed := r.Group("")
	authed.Use(middleware.JWTAuth())
	rt.RegisterConversationRoutes(authed)
	rt.RegisterMessageRoutes(authed)
	rt.RegisterReadRoutes(authed)
	rt.RegisterWebSocketRoutes(authed)
}
