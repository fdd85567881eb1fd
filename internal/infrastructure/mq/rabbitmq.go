// rabbitmq.go 课程预约事件消费者
// 连接断开后按指数退避重连并重新声明拓扑，消息处理结果决定 ack / nack
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	maxReconnectDelay = 30 * time.Second
	handleTimeout     = 10 * time.Second
)

// ErrPoison 内容本身有问题（如 JSON 解析失败），重投也不会成功
var ErrPoison = errors.New("poison message")

// JSONHandler 把类型化处理函数包装成投递处理函数，解析失败视为毒消息
func JSONHandler[T any](h func(context.Context, T) error) func(context.Context, amqp.Delivery) error {
	return func(ctx context.Context, d amqp.Delivery) error {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
		return h(ctx, v)
	}
}

// ConsumerOptions 单个消费者的拓扑与处理函数
type ConsumerOptions struct {
	Name       string
	Exchange   string // topic exchange
	Queue      string
	BindingKey string
	Prefetch   int

	Consume func(ctx context.Context, d amqp.Delivery) error
}

// DialWithRetry 指数退避连接，ctx 取消时立即返回
func DialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	var lastErr error
	for i := 1; attempts <= 0 || i <= attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			if i > 1 {
				zap.L().Info("rabbitmq 已连接", zap.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err

		sleep := backoff(delay, i)
		zap.L().Warn("rabbitmq 连接失败",
			zap.Int("attempt", i),
			zap.Duration("sleep", sleep),
			zap.Error(err),
		)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("rabbitmq: %d 次连接均失败: %w", attempts, lastErr)
}

func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt && d < maxReconnectDelay; i++ {
		d *= 2
	}
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

// Consumer 受监管的消费者
type Consumer struct {
	url  string
	opts ConsumerOptions
}

// NewConsumer 创建消费者，Run 之前不会建立连接
func NewConsumer(url string, opts ConsumerOptions) *Consumer {
	if opts.Prefetch <= 0 {
		opts.Prefetch = 1
	}
	return &Consumer{url: url, opts: opts}
}

// Run 阻塞运行直到 ctx 取消，连接或通道断开后自动重连
func (c *Consumer) Run(ctx context.Context) error {
	for {
		conn, err := DialWithRetry(ctx, c.url, 0, time.Second)
		if err != nil {
			return err
		}
		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Error("rabbitmq 消费中断，准备重连", zap.String("consumer", c.opts.Name), zap.Error(err))
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(c.opts.Prefetch, 0, false); err != nil {
		return err
	}
	if err := declareTopology(ch, c.opts); err != nil {
		return err
	}
	deliveries, err := ch.Consume(c.opts.Queue, c.opts.Name, false, false, false, false, nil)
	if err != nil {
		return err
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	zap.L().Info("rabbitmq 消费者已启动",
		zap.String("consumer", c.opts.Name),
		zap.String("queue", c.opts.Queue),
		zap.Int("prefetch", c.opts.Prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, c.opts, d)
		}
	}
}

func declareTopology(ch *amqp.Channel, s ConsumerOptions) error {
	if err := ch.ExchangeDeclare(s.Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(s.Queue, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(s.Queue, s.BindingKey, s.Exchange, false, nil)
}

// handleDelivery 毒消息 ack 丢弃，其余失败 nack 重新入队
func handleDelivery(ctx context.Context, opts ConsumerOptions, d amqp.Delivery) {
	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	err := opts.Consume(hctx, d)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrPoison):
		zap.L().Warn("丢弃无法解析的消息",
			zap.String("consumer", opts.Name),
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		_ = d.Ack(false)
	default:
		zap.L().Error("消息处理失败，重新入队",
			zap.String("consumer", opts.Name),
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		_ = d.Nack(false, true)
	}
}
