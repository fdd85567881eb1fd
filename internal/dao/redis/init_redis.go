// Package redis 本文件仅包含 Redis 连接初始化逻辑
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"strconv"
	"time"

	"tutor_chat_server/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cacheService 全局缓存服务实例
var cacheService AsyncCacheService

// Init 初始化 Redis 连接
// 连不上只记录警告，缓存是加速层不是正确性依赖
func Init() {
	conf := config.GetConfig().RedisConfig
	addr := conf.Host + ":" + strconv.Itoa(conf.Port)

	workers := conf.Workers
	if workers <= 0 {
		workers = 15
	}
	taskSize := conf.TaskSize
	if taskSize <= 0 {
		taskSize = 3000
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     conf.Password,
		DB:           conf.Db,
		PoolSize:     50,
		MinIdleConns: workers,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zap.L().Warn("Redis 连接失败，缓存操作将报错降级", zap.String("addr", addr), zap.Error(err))
	}

	cacheService = NewRedisCache(client, workers, taskSize)
}

// GetCacheService 获取缓存服务实例
func GetCacheService() AsyncCacheService {
	return cacheService
}
