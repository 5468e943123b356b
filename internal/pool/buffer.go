// Package pool provides memory management for multipart transfers.
// Part buffers are large (megabytes each) and short-lived; pooling them
// keeps a bounded upload from re-allocating one per part.
package pool

import (
	"sync"
)

// PartPool manages reusable fixed-size buffers for part reads. All buffers
// handed out have exactly the pool's size; callers slice down for a short
// final part and must not use a buffer after returning it.
type PartPool struct {
	size int64
	pool sync.Pool
}

// NewPartPool creates a pool of buffers of the given size in bytes.
func NewPartPool(size int64) *PartPool {
	p := &PartPool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size returns the size of buffers managed by the pool.
func (p *PartPool) Size() int64 {
	return p.size
}

// Get returns a buffer of the pool's size.
// The caller is responsible for calling Put to return it to the pool.
func (p *PartPool) Get() []byte {
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:p.size]
}

// Put returns a buffer to the pool. Buffers with insufficient capacity
// (not obtained from Get) are dropped.
func (p *PartPool) Put(buf []byte) {
	if int64(cap(buf)) < p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
