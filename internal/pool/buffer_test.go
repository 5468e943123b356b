package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartPool_GetPut(t *testing.T) {
	p := NewPartPool(1024)

	buf := p.Get()
	assert.Len(t, buf, 1024)
	assert.EqualValues(t, 1024, p.Size())

	// Slicing down for a short final part and returning still works.
	short := buf[:100]
	p.Put(short)

	again := p.Get()
	assert.Len(t, again, 1024)
}

func TestPartPool_RejectsForeignBuffers(t *testing.T) {
	p := NewPartPool(1024)

	// Too small to be reused; must be dropped, not recycled.
	p.Put(make([]byte, 16))

	buf := p.Get()
	assert.Len(t, buf, 1024)
}

func TestPartPool_ConcurrentUse(t *testing.T) {
	p := NewPartPool(256)

	done := make(chan struct{})
	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 100 {
				buf := p.Get()
				assert.Len(t, buf, 256)
				p.Put(buf)
			}
		}()
	}
	for range 8 {
		<-done
	}
}
