// Package database 负责建立数据库连接、自动迁移表结构、初始化 Repository 层
// 驱动由 databaseConfig.driver 决定：mysql（默认）/ postgres / sqlite
package database

import (
	"fmt"
	"time"

	"tutor_chat_server/internal/config"
	"tutor_chat_server/internal/dao/database/repository"
	"tutor_chat_server/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Init 初始化数据库连接并返回 Repository 层实例
// 连接或迁移失败直接退出进程
func Init() *repository.Repositories {
	conf := config.GetConfig()

	db, err := Open(&conf.DatabaseConfig)
	if err != nil {
		zap.L().Fatal("数据库连接失败", zap.String("driver", conf.DatabaseConfig.Driver), zap.Error(err))
	}
	if err = Migrate(db); err != nil {
		zap.L().Fatal("数据库迁移失败", zap.Error(err))
	}
	zap.L().Info("数据库已就绪", zap.String("driver", conf.DatabaseConfig.Driver))
	return repository.NewRepositories(db)
}

// Open 根据驱动建立连接
// TranslateError 开启后唯一约束冲突会变成 gorm.ErrDuplicatedKey
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		// 格式：user:password@tcp(host:port)/database?params
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DatabaseName)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DatabaseName)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.DatabaseName), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate 自动迁移表结构，不会删除已有字段或数据
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.Tables()...)
}
