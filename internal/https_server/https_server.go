// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件、静态资源和路由
package https_server

import (
	"strings"

	"tutor_chat_server/internal/config"
	"tutor_chat_server/internal/handler"
	"tutor_chat_server/internal/infrastructure/logger"
	"tutor_chat_server/internal/infrastructure/middleware"
	"tutor_chat_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Init 创建 Gin 引擎并注册中间件、静态资源和业务路由
// 不使用 gin.Default()，日志和 panic 恢复都交给 zap
func Init(handlers *handler.Handlers, conf *config.Config) *gin.Engine {
	engine := gin.New()
	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true // 由网关收紧
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// 证书由本进程加载时才做跳转，交给 Nginx 终止 TLS 的部署不需要
	main := conf.MainConfig
	if main.TlsRedirect && main.CertFile != "" {
		engine.Use(middleware.TlsHandler(main.Host, main.Port))
	}

	// 附件静态目录
	if conf.StaticSrcConfig.StaticFilePath != "" && strings.HasPrefix(conf.StaticSrcConfig.PublicURL, "/") {
		engine.Static(conf.StaticSrcConfig.PublicURL, conf.StaticSrcConfig.StaticFilePath)
	}

	engine.GET("/ping", func(c *gin.Context) {
		handler.HandleSuccess(c, "pong")
	})

	rt := router.NewRouter(handlers)
	rt.RegisterRoutes(engine)

	return engine
}
