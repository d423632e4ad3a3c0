// Package pool 提供热点类型的对象池，避免热路径上的频繁分配。
package pool

import "sync"

// Pool 按块增长的对象池。单把互斥锁保护空闲链，池只增不缩。
type Pool[T any] struct {
	mu        sync.Mutex
	free      []*T
	blockSize int
	allocated int

	// reset 在对象归还时调用，清理上一次使用的残留状态。
	reset func(*T)
}

// New 创建块大小为 blockSize 的对象池；blockSize <= 0 时取 1024。
func New[T any](blockSize int, reset func(*T)) *Pool[T] {
	if blockSize <= 0 {
		blockSize = 1024
	}
	p := &Pool[T]{blockSize: blockSize, reset: reset}
	p.grow()
	return p
}

func (p *Pool[T]) grow() {
	block := make([]T, p.blockSize)
	for i := range block {
		p.free = append(p.free, &block[i])
	}
	p.allocated += p.blockSize
}

// Get 取出一个对象，空闲链耗尽时整块扩容。
func (p *Pool[T]) Get() *T {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.grow()
	}
	obj := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.mu.Unlock()
	return obj
}

// Put 归还对象。nil 直接忽略。
func (p *Pool[T]) Put(obj *T) {
	if obj == nil {
		return
	}
	if p.reset != nil {
		p.reset(obj)
	}
	p.mu.Lock()
	p.free = append(p.free, obj)
	p.mu.Unlock()
}

// TotalAllocated 返回池累计分配的对象数。
func (p *Pool[T]) TotalAllocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Available 返回空闲对象数。
func (p *Pool[T]) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// InUse 返回已借出对象数。
func (p *Pool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated - len(p.free)
}

// Handle 借出对象的句柄，Release 幂等归还。
type Handle[T any] struct {
	obj  *T
	pool *Pool[T]
}

// Borrow 从池中取对象并包装为句柄。
func Borrow[T any](p *Pool[T]) Handle[T] {
	return Handle[T]{obj: p.Get(), pool: p}
}

// Get 返回底层对象，句柄已释放时为 nil。
func (h *Handle[T]) Get() *T { return h.obj }

// Release 将对象归还池中，重复调用无效。
func (h *Handle[T]) Release() {
	if h.obj != nil && h.pool != nil {
		h.pool.Put(h.obj)
		h.obj = nil
	}
}

// Detach 放弃句柄所有权，调用方自行负责归还。
func (h *Handle[T]) Detach() *T {
	obj := h.obj
	h.obj = nil
	return obj
}
