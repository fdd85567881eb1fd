package middleware

import (
	"net/http"
	"strings"

	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/pkg/enum/user_role_enum"
	"tutor_chat_server/pkg/errorx"
	"tutor_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// 上下文 key
const (
	CtxUserId   = "user_id"
	CtxRole     = "role"
	CtxNickname = "nickname"
)

// JWTAuth JWT 认证中间件
// 验证 Access Token 并将用户身份存入上下文
// 浏览器的 WebSocket 无法带自定义 Header，握手时允许用 ?token= 传递
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := extractToken(c)
		if tokenString == "" {
			abortUnauthorized(c, msg)
			return
		}

		claims, err := jwt.ParseToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "Token 已过期或无效，请重新登录")
			return
		}
		if claims.Subject != jwt.SubjectAccessToken {
			abortUnauthorized(c, "请使用 Access Token 访问此接口")
			return
		}
		role, ok := user_role_enum.Parse(claims.Role)
		if !ok || claims.UserID == "" {
			abortUnauthorized(c, "Token 缺少有效的用户身份")
			return
		}

		c.Set(CtxUserId, claims.UserID)
		c.Set(CtxRole, role)
		c.Set(CtxNickname, claims.Nickname)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if t := c.Query("token"); t != "" {
			return t, ""
		}
		return "", "请先登录"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Token 格式错误，请使用 Bearer Token"
	}
	return parts[1], ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errorx.CodeUnauthorized,
		"msg":  msg,
	})
}

// IdentityFrom 读取 JWTAuth 写入的身份，未经过中间件时 ok 为 false
func IdentityFrom(c *gin.Context) (request.Identity, bool) {
	userId := c.GetString(CtxUserId)
	if userId == "" {
		return request.Identity{}, false
	}
	role, _ := c.Get(CtxRole)
	r, _ := role.(user_role_enum.Role)
	return request.Identity{
		UserId:   userId,
		Role:     r,
		Nickname: c.GetString(CtxNickname),
	}, true
}
