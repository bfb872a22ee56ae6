// Package paged implements an append-only byte buffer made of fixed-size pages rented from a reusable pool.
package paged

import "sync"

// PageSize is the page size of the DefaultPool.
const PageSize = 4096

// Pool hands out fixed size pages. Implementations must be safe for concurrent use, a single pool is shared by
// unrelated buffers.
type Pool interface {
	// Get rents a page. Every page has the same length (the pool's page size).
	Get() []byte
	// Put returns a page obtained from Get. A page must be returned at most once.
	Put(page []byte)
	// PageSize reports the length of the pages handed out.
	PageSize() int
}

// SyncPool is a Pool backed by a sync.Pool for one size class.
type SyncPool struct {
	size int
	pool sync.Pool
}

// NewPool inits a pool for pages of 'size' bytes.
func NewPool(size int) *SyncPool {
	if size <= 0 {
		panic("paged: page size must be positive")
	}

	p := &SyncPool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}

	return p
}

// DefaultPool is used by buffers created without an explicit pool.
var DefaultPool Pool = NewPool(PageSize)

// Get implements Pool.
func (p *SyncPool) Get() []byte {
	b, _ := p.pool.Get().(*[]byte)
	return (*b)[:p.size]
}

// Put implements Pool. Pages of a foreign size class are dropped.
func (p *SyncPool) Put(page []byte) {
	if cap(page) < p.size {
		return
	}

	page = page[:p.size]
	p.pool.Put(&page)
}

// PageSize implements Pool.
func (p *SyncPool) PageSize() int { return p.size }

var _ Pool = &SyncPool{}
