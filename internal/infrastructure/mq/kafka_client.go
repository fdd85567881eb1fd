// Package mq 封装消息中间件客户端
// kafka_client.go 负责 Kafka Writer/Reader 的创建与关闭，不包含聊天业务逻辑
package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	myconfig "tutor_chat_server/internal/config"
)

// KafkaClient Kafka 客户端
type KafkaClient struct {
	ChatWriter *kafka.Writer
	ChatReader *kafka.Reader
	cfg        myconfig.KafkaConfig
}

// NewKafkaClient 初始化 kafka
// groupID 每个节点独立，保证每个节点都能收到全量聊天事件
func NewKafkaClient(kafkaConfig myconfig.KafkaConfig, groupID string) *KafkaClient {
	timeout := kafkaConfig.Timeout * time.Second
	if timeout <= 0 {
		timeout = time.Second
	}
	return &KafkaClient{
		cfg: kafkaConfig,
		// 按会话 ID 哈希分区，同一会话的事件有序
		ChatWriter: &kafka.Writer{
			Addr:                   kafka.TCP(kafkaConfig.HostPort),
			Topic:                  kafkaConfig.ChatTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           timeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
		ChatReader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        []string{kafkaConfig.HostPort},
			Topic:          kafkaConfig.ChatTopic,
			CommitInterval: timeout,
			GroupID:        groupID,
			StartOffset:    kafka.LastOffset,
		}),
	}
}

// CreateTopic 创建 topic，已存在时 broker 返回错误，只记录日志
func (k *KafkaClient) CreateTopic() {
	conn, err := kafka.Dial("tcp", k.cfg.HostPort)
	if err != nil {
		zap.L().Error("连接 kafka 失败", zap.Error(err))
		return
	}
	defer conn.Close()

	partitions := k.cfg.Partition
	if partitions <= 0 {
		partitions = 1
	}
	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             k.cfg.ChatTopic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		zap.L().Warn("创建 topic 失败", zap.String("topic", k.cfg.ChatTopic), zap.Error(err))
	}
}

// WriteMessage 写入一条消息
func (k *KafkaClient) WriteMessage(ctx context.Context, key, value []byte) error {
	return k.ChatWriter.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// ReadMessage 阻塞读取，消费组模式下自动提交位移
func (k *KafkaClient) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return k.ChatReader.ReadMessage(ctx)
}

// Close 关闭读写端
func (k *KafkaClient) Close() {
	if err := k.ChatWriter.Close(); err != nil {
		zap.L().Error("关闭 kafka writer 失败", zap.Error(err))
	}
	if err := k.ChatReader.Close(); err != nil {
		zap.L().Error("关闭 kafka reader 失败", zap.Error(err))
	}
}
