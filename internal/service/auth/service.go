// Package auth 提供认证相关的业务逻辑
// 刷新 Access Token；登录方签发时把最新 Refresh Token ID 写入 Redis，旧设备随即失效
package auth

import (
	"context"

	"go.uber.org/zap"

	myredis "tutor_chat_server/internal/dao/redis"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/pkg/constants"
	"tutor_chat_server/pkg/errorx"
	"tutor_chat_server/pkg/util/jwt"
	"tutor_chat_server/pkg/util/singleflight"
)

// Service 认证服务实现
type Service struct {
	cache   myredis.CacheService // 缓存服务（依赖倒置）
	refresh *singleflight.Coordinator[string]
}

// NewAuthService 创建认证服务实例
func NewAuthService(cache myredis.CacheService) *Service {
	return &Service{
		cache:   cache,
		refresh: singleflight.New[string](),
	}
}

// ValidateTokenID 验证用户的 Token ID 是否仍是最新一次签发的
func (s *Service) ValidateTokenID(ctx context.Context, userID, tokenID string) (bool, error) {
	validTokenID, err := s.cache.Get(ctx, constants.USER_TOKEN_KEY+userID)
	if err != nil {
		return false, err
	}
	if validTokenID == "" {
		return false, nil
	}
	return tokenID == validTokenID, nil
}

// RefreshToken 用 Refresh Token 换新的 Access Token
// 同一 Token ID 的并发刷新只执行一次，其余调用方共享结果
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*respond.RefreshTokenRespond, error) {
	claims, err := jwt.ParseToken(refreshToken)
	if err != nil {
		return nil, errorx.New(errorx.CodeUnauthorized, "Refresh Token 已过期或无效，请重新登录")
	}
	// 防止使用 Access Token 刷新
	if claims.Subject != jwt.SubjectRefreshToken || claims.TokenID == "" {
		return nil, errorx.New(errorx.CodeUnauthorized, "请使用 Refresh Token")
	}

	accessToken, shared, err := s.refresh.Do(ctx, claims.TokenID, func(ctx context.Context) (string, error) {
		ok, err := s.ValidateTokenID(ctx, claims.UserID, claims.TokenID)
		if err != nil {
			zap.L().Error("读取 Token ID 失败", zap.String("user_id", claims.UserID), zap.Error(err))
			return "", errorx.New(errorx.CodeUnauthorized, "登录状态已失效，请重新登录")
		}
		if !ok {
			return "", errorx.New(errorx.CodeUnauthorized, "您的账号已在其他设备登录，请重新登录")
		}
		token, err := jwt.GenerateAccessToken(claims.UserID, claims.Role, claims.Nickname)
		if err != nil {
			zap.L().Error("生成 Access Token 失败", zap.Error(err))
			return "", errorx.ErrServerBusy
		}
		return token, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errorx.ErrServerBusy
		}
		return nil, err
	}
	if shared {
		zap.L().Debug("合并并发刷新请求", zap.String("user_id", claims.UserID))
	}
	return &respond.RefreshTokenRespond{AccessToken: accessToken}, nil
}
