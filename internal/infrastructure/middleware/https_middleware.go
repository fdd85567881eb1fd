package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// TlsHandler 把 HTTP 请求重定向到 HTTPS，并补上常用安全响应头
// mainConfig.tlsRedirect 开启且配置了证书时才挂载
func TlsHandler(host string, port int) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:          true,
		SSLHost:              host + ":" + strconv.Itoa(port),
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
		ContentTypeNosniff:   true,
		FrameDeny:            true,
		STSSeconds:           31536000,
		STSIncludeSubdomains: true,
	})

	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// 不能 Fatal，记录后终止当前请求即可
			zap.L().Warn("TLS 重定向", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.Abort()
			return
		}
		// 已经写了重定向响应
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
			return
		}
		c.Next()
	}
}
