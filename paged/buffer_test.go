package paged_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/advdv/bbody/paged"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// countingPool tracks outstanding pages so tests can assert every page is returned exactly once.
type countingPool struct {
	*paged.SyncPool
	mu     sync.Mutex
	rented map[*byte]bool
	gets   int
	puts   int
}

func newCountingPool(size int) *countingPool {
	return &countingPool{SyncPool: paged.NewPool(size), rented: map[*byte]bool{}}
}

func (p *countingPool) Get() []byte {
	b := p.SyncPool.Get()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	p.rented[&b[0]] = true
	return b
}

func (p *countingPool) Put(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.rented[&b[0]] {
		panic("page returned twice or never rented")
	}
	delete(p.rented, &b[0])
	p.puts++
	p.SyncPool.Put(b)
}

func (p *countingPool) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rented)
}

func TestBufferAdd(t *testing.T) {
	pool := newCountingPool(4)
	buf := paged.NewBuffer(pool)

	t.Run("should grow by pages", func(t *testing.T) {
		n, err := buf.Write([]byte("abcdefghij"))
		require.NoError(t, err)
		require.Equal(t, 10, n)
		assert.Equal(t, 10, buf.Len())
		assert.Equal(t, 3, pool.outstanding())
	})

	t.Run("should fill the partial page first", func(t *testing.T) {
		_, err := buf.Write([]byte("kl"))
		require.NoError(t, err)
		assert.Equal(t, 12, buf.Len())
		assert.Equal(t, 3, pool.outstanding())
	})

	t.Run("should read back at offsets", func(t *testing.T) {
		p := make([]byte, 5)
		n, err := buf.ReadAt(p, 3)
		require.NoError(t, err)
		assert.Equal(t, "defgh", string(p[:n]))

		n, err = buf.ReadAt(p, 10)
		require.ErrorIs(t, err, io.EOF)
		assert.Equal(t, "kl", string(p[:n]))
	})

	t.Run("should move in order and return pages", func(t *testing.T) {
		var dst bytes.Buffer
		n, err := buf.MoveTo(&dst)
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
		assert.Equal(t, "abcdefghijkl", dst.String())
		assert.Equal(t, 0, buf.Len())
		assert.Equal(t, 0, pool.outstanding())
	})

	t.Run("should be reusable after move", func(t *testing.T) {
		_, err := buf.Write([]byte("xyz"))
		require.NoError(t, err)
		assert.Equal(t, 1, pool.outstanding())
	})

	t.Run("should dispose idempotently", func(t *testing.T) {
		require.NoError(t, buf.Close())
		require.NoError(t, buf.Close())
		assert.Equal(t, 0, pool.outstanding())
		assert.Equal(t, pool.gets, pool.puts)

		_, err := buf.Write([]byte("x"))
		require.ErrorIs(t, err, paged.ErrClosed)
	})
}

func TestBufferResetThenClose(t *testing.T) {
	pool := newCountingPool(4)
	buf := paged.NewBuffer(pool)

	_, err := buf.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.Equal(t, 2, pool.outstanding())

	buf.Reset()
	buf.Reset()
	require.NoError(t, buf.Close())

	assert.Equal(t, 0, pool.outstanding())
	assert.Equal(t, 2, pool.puts, "every page is returned exactly once")
}

func TestBufferMoveToCancelled(t *testing.T) {
	pool := newCountingPool(8)
	buf := paged.NewBuffer(pool)
	_, err := buf.Write(bytes.Repeat([]byte{'a'}, 100))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = buf.MoveToContext(ctx, io.Discard)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, pool.outstanding(), "cancelled move must not leak pages")
	assert.Equal(t, 0, buf.Len())
}

func TestBufferMoveToFailingWriter(t *testing.T) {
	pool := newCountingPool(8)
	buf := paged.NewBuffer(pool)
	_, err := buf.Write([]byte("0123456789"))
	require.NoError(t, err)

	_, err = buf.MoveTo(failingWriter{})
	require.Error(t, err)
	assert.Equal(t, 0, pool.outstanding())
}

func TestPoolConcurrentRentReturn(t *testing.T) {
	pool := newCountingPool(paged.PageSize)

	var eg errgroup.Group
	for i := range 16 {
		eg.Go(func() error {
			buf := paged.NewBuffer(pool)
			defer buf.Close()

			data := bytes.Repeat([]byte{byte(i)}, paged.PageSize*3+7)
			if _, err := buf.Write(data); err != nil {
				return err
			}

			var dst bytes.Buffer
			if _, err := buf.MoveTo(&dst); err != nil {
				return err
			}
			if !bytes.Equal(dst.Bytes(), data) {
				return io.ErrShortWrite
			}
			return nil
		})
	}

	require.NoError(t, eg.Wait())
	assert.Equal(t, 0, pool.outstanding())
}

func TestSyncPoolPageSize(t *testing.T) {
	pool := paged.NewPool(16)
	page := pool.Get()
	assert.Len(t, page, 16)
	assert.Equal(t, 16, pool.PageSize())
	pool.Put(page)
	pool.Put(make([]byte, 3)) // foreign size class is dropped

	assert.Panics(t, func() { paged.NewPool(0) })
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }
