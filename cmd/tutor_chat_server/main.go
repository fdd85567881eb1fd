package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tutor_chat_server/internal/config"
	"tutor_chat_server/internal/dao/database"
	myredis "tutor_chat_server/internal/dao/redis"
	"tutor_chat_server/internal/handler"
	"tutor_chat_server/internal/https_server"
	"tutor_chat_server/internal/infrastructure/logger"
	"tutor_chat_server/internal/infrastructure/mq"
	"tutor_chat_server/internal/service"
	"tutor_chat_server/internal/service/chat"
	"tutor_chat_server/internal/service/message"
	"tutor_chat_server/pkg/util/jwt"
	"tutor_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer zap.L().Sync()

	// 3. JWT 与雪花 ID
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry, conf.JWTConfig.RefreshTokenExpiry)
	snowflake.Init()

	// 4. 数据库与 Redis
	repos := database.Init()
	myredis.Init()

	// 5. 附件存储
	storage, err := message.NewLocalFileStorage(conf.StaticSrcConfig.StaticFilePath, conf.StaticSrcConfig.PublicURL)
	if err != nil {
		zap.L().Fatal("附件目录初始化失败", zap.Error(err))
	}

	// 6. 广播代理：单机用 channel，多节点用 kafka
	broker := newBroker(conf)

	// 7. Service 层 (依赖注入)
	svcs := service.NewServices(service.Dependencies{
		Repos:   repos,
		Cache:   myredis.GetCacheService(),
		Storage: storage,
		Broker:  broker,
		Chat:    conf.ChatConfig,
	})
	zap.L().Info("Service 层初始化成功", zap.String("message_mode", conf.KafkaConfig.MessageMode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 8. 课程预约事件
	consumerDone := make(chan struct{})
	if conf.RabbitMQConfig.Enabled {
		rc := conf.RabbitMQConfig
		consumer := mq.NewConsumer(rc.URL, mq.ConsumerOptions{
			Name:       "booking",
			Exchange:   rc.Exchange,
			Queue:      rc.Queue,
			BindingKey: rc.BindingKey,
			Prefetch:   rc.Prefetch,
			Consume:    mq.JSONHandler(svcs.Booking.Handle),
		})
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zap.L().Error("预约事件消费者退出", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}

	// 9. HTTP 服务
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Warn("validator 翻译器初始化失败", zap.Error(err))
	}
	engine := https_server.Init(handler.NewHandlers(svcs, conf.ChatConfig.SendBufferSize), conf)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}
	go func() {
		var err error
		if conf.MainConfig.CertFile != "" {
			err = srv.ListenAndServeTLS(conf.MainConfig.CertFile, conf.MainConfig.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()
	zap.L().Info("服务已启动", zap.String("addr", srv.Addr))

	<-ctx.Done()
	zap.L().Info("关闭服务器...")

	// WebSocket 连接被 hijack，不受 Shutdown 管理，靠进程退出断开
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP 服务关闭失败", zap.Error(err))
	}
	<-consumerDone
	broker.Close()

	zap.L().Info("服务器已关闭")
}

func newBroker(conf *config.Config) chat.MessageBroker {
	if conf.KafkaConfig.MessageMode != "kafka" {
		return chat.NewChannelBroker()
	}
	groupID := conf.KafkaConfig.GroupPrefix + strconv.FormatInt(conf.SnowflakeConfig.MachineID, 10)
	client := mq.NewKafkaClient(conf.KafkaConfig, groupID)
	client.CreateTopic()
	return chat.NewKafkaBroker(client)
}
