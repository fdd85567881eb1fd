// Package keylock 提供按 key 加锁的互斥锁
// 同一 key 串行，不同 key 互不阻塞；空闲 key 会被回收
package keylock

import "sync"

type entry struct {
	mu  sync.Mutex
	ref int
}

// KeyLock 按 key 分片的互斥锁
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New 创建 KeyLock
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock 获取 key 对应的锁，返回解锁函数
//
//	unlock := l.Lock(conversationId)
//	defer unlock()
func (l *KeyLock) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.ref++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.ref--
			if e.ref == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len 当前持有或等待中的 key 数量
func (l *KeyLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
