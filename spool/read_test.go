package spool_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/advdv/bbody/bodyerr"
	"github.com/advdv/bbody/spool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource is a non-seekable source that records reads and closing.
type countingSource struct {
	r      io.Reader
	reads  int
	closed bool
}

func (s *countingSource) Read(p []byte) (int, error) {
	s.reads++
	return s.r.Read(p)
}

func (s *countingSource) Close() error {
	s.closed = true
	return nil
}

func TestReadStreamReplay(t *testing.T) {
	data := strings.Repeat("0123456789", 100)

	for _, threshold := range []int{0, 7, 64, 1 << 20} {
		var calls int
		src := &countingSource{r: iotest.OneByteReader(strings.NewReader(data))}
		rs := spool.NewReadStream(src, spool.WithMemoryThreshold(threshold), spool.WithTempDir(tempDir(t, &calls)))

		first, err := io.ReadAll(rs)
		require.NoError(t, err)
		require.Equal(t, data, string(first))
		reads := src.reads

		pos, err := rs.Seek(0, io.SeekStart)
		require.NoError(t, err)
		require.Equal(t, int64(0), pos)

		second, err := io.ReadAll(rs)
		require.NoError(t, err)
		assert.Equal(t, data, string(second), "threshold %d", threshold)
		assert.Equal(t, reads, src.reads, "replay must not touch the source")

		require.NoError(t, rs.Close())
		assert.False(t, src.closed, "the wrapped source is never closed")
	}
}

func TestReadStreamPartialReplayThenResume(t *testing.T) {
	var calls int
	rs := spool.NewReadStream(strings.NewReader("hello world, hello spool"),
		spool.WithMemoryThreshold(4), spool.WithTempDir(tempDir(t, &calls)))
	defer rs.Close()

	p := make([]byte, 11)
	_, err := io.ReadFull(rs, p)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(p))
	assert.Equal(t, int64(11), rs.Buffered())
	assert.NotEmpty(t, rs.TempFile())

	_, err = rs.Seek(6, io.SeekStart)
	require.NoError(t, err)

	rest, err := io.ReadAll(rs)
	require.NoError(t, err)
	assert.Equal(t, "world, hello spool", string(rest))

	_, err = rs.Seek(-5, io.SeekCurrent)
	require.NoError(t, err)
	tail, err := io.ReadAll(rs)
	require.NoError(t, err)
	assert.Equal(t, "spool", string(tail))
}

func TestReadStreamSeekEndAndReadAt(t *testing.T) {
	var calls int
	rs := spool.NewReadStream(iotest.HalfReader(strings.NewReader("abcdefghij")),
		spool.WithMemoryThreshold(3), spool.WithTempDir(tempDir(t, &calls)))
	defer rs.Close()

	end, err := rs.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(10), end)

	p := make([]byte, 4)
	n, err := rs.ReadAt(p, 2)
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(p[:n]))
	assert.Equal(t, int64(10), rs.Position(), "ReadAt must not move the position")

	n, err = rs.ReadAt(p, 8)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "ij", string(p[:n]))

	_, err = rs.Seek(-1, io.SeekStart)
	require.Error(t, err)
}

func TestReadStreamReadAtPullsSource(t *testing.T) {
	rs := spool.NewReadStream(strings.NewReader("abcdef"))
	defer rs.Close()

	p := make([]byte, 2)
	_, err := rs.ReadAt(p, 3)
	require.NoError(t, err)
	assert.Equal(t, "de", string(p))

	all, err := io.ReadAll(rs)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(all))
}

func TestReadStreamBufferLimit(t *testing.T) {
	var calls int
	rs := spool.NewReadStream(bytes.NewReader(make([]byte, 100)),
		spool.WithMemoryThreshold(8), spool.WithBufferLimit(50), spool.WithTempDir(tempDir(t, &calls)))

	_, err := io.ReadAll(rs)
	require.ErrorIs(t, err, bodyerr.ErrBufferLimitExceeded)
	assert.Equal(t, "Buffer limit exceeded.", err.Error())

	_, err = rs.Seek(0, io.SeekStart)
	require.Error(t, err, "stream is unusable after the limit was exceeded")
	require.NoError(t, rs.Close())
}

func TestReadStreamDoubleClose(t *testing.T) {
	var calls int
	rs := spool.NewReadStream(strings.NewReader("some bytes to spill"),
		spool.WithMemoryThreshold(2), spool.WithTempDir(tempDir(t, &calls)))

	_, err := io.ReadAll(rs)
	require.NoError(t, err)
	name := rs.TempFile()
	require.FileExists(t, name)

	require.NoError(t, rs.Close())
	require.NoError(t, rs.Close())
	assert.NoFileExists(t, name)

	_, err = rs.Read(make([]byte, 1))
	require.ErrorIs(t, err, spool.ErrClosed)
}

func TestReadStreamSourceError(t *testing.T) {
	rs := spool.NewReadStream(iotest.ErrReader(io.ErrClosedPipe))
	defer rs.Close()

	_, err := rs.Read(make([]byte, 4))
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
