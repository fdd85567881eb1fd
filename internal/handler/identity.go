package handler

import (
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/infrastructure/middleware"
	"tutor_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

var errNoIdentity = errorx.New(errorx.CodeUnauthorized, "请先登录")

// mustIdentity 取当前调用方身份，缺失时直接写回未授权
func mustIdentity(c *gin.Context) (request.Identity, bool) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		HandleError(c, errNoIdentity)
		return request.Identity{}, false
	}
	return ident, true
}
