// Package singleflight 提供显式的"同一时刻只允许一个进行中操作"协调器
// 典型用途：同一 refresh token 的并发刷新只真正执行一次，其余调用方挂起等待同一个结果
package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// call 一次进行中的操作
// done 关闭之后 val/err 只读
type call[T any] struct {
	done    chan struct{}
	val     T
	err     error
	waiters int
}

// Coordinator 按 key 合并并发调用
// 等待队列挂在 call 上，由 done 通道统一唤醒，不存在丢失唤醒的窗口
type Coordinator[T any] struct {
	mu    sync.Mutex
	calls map[string]*call[T]
}

// New 创建协调器
func New[T any]() *Coordinator[T] {
	return &Coordinator[T]{calls: make(map[string]*call[T])}
}

// Do 执行 fn，若同 key 已有进行中的调用则挂起等待其结果
// shared 表示结果来自其他调用方发起的那次执行
// 挂起中的调用方可以通过 ctx 放弃等待，不影响进行中的执行
func (c *Coordinator[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (v T, shared bool, err error) {
	c.mu.Lock()
	if cl, ok := c.calls[key]; ok {
		cl.waiters++
		c.mu.Unlock()

		select {
		case <-cl.done:
			return cl.val, true, cl.err
		case <-ctx.Done():
			c.mu.Lock()
			cl.waiters--
			c.mu.Unlock()
			var zero T
			return zero, true, ctx.Err()
		}
	}

	cl := &call[T]{done: make(chan struct{})}
	c.calls[key] = cl
	c.mu.Unlock()

	c.run(ctx, key, cl, fn)
	return cl.val, false, cl.err
}

func (c *Coordinator[T]) run(ctx context.Context, key string, cl *call[T], fn func(ctx context.Context) (T, error)) {
	defer func() {
		if r := recover(); r != nil {
			cl.err = fmt.Errorf("singleflight: panic in %q: %v", key, r)
		}
		c.mu.Lock()
		delete(c.calls, key)
		c.mu.Unlock()
		close(cl.done)
	}()
	cl.val, cl.err = fn(ctx)
}

// InFlight key 是否有进行中的调用
func (c *Coordinator[T]) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.calls[key]
	return ok
}

// Waiting key 上挂起的调用方数量
func (c *Coordinator[T]) Waiting(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.calls[key]; ok {
		return cl.waiters
	}
	return 0
}
