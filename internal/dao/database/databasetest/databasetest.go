// Package databasetest 为各层测试提供迁移好的内存 SQLite
package databasetest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"tutor_chat_server/internal/config"
	"tutor_chat_server/internal/dao/database"
	"tutor_chat_server/internal/dao/database/repository"

	"gorm.io/gorm"
)

var seq atomic.Int64

// Open 每次调用返回一个独立的内存库
// 单连接，避免共享缓存模式下的写锁冲突
func Open(t testing.TB) (*repository.Repositories, *gorm.DB) {
	t.Helper()
	name := fmt.Sprintf("file:tutor_chat_test_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := database.Open(&config.DatabaseConfig{Driver: "sqlite", DatabaseName: name, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewRepositories(db), db
}
