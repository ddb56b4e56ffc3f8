package bfs

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func initTestFS(t testing.TB, numBlocks, numInodes int) (*FS, *BytesBlocks) {
	t.Helper()
	fsys, dev, err := initTestFSWithLogger(numBlocks, numInodes, nil)
	require.NoError(t, err)
	return fsys, dev
}

func initTestFSWithLogger(numBlocks, numInodes int, logger *slog.Logger) (*FS, *BytesBlocks, error) {
	dev := NewBytesBlocks(numBlocks)
	var f Formatter
	err := f.Format(dev, FormatConfig{NumBlocks: numBlocks, NumInodes: numInodes})
	if err != nil {
		return nil, nil, err
	}
	fsys := &FS{}
	fsys.SetLogger(logger)
	if err := fsys.Mount(dev, ModeRW); err != nil {
		return nil, nil, err
	}
	return fsys, dev, nil
}

// pattern returns n bytes that differ from their neighbours and repeat with a
// period that is not a divisor of BlockSize.
func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i%251) + seed
	}
	return b
}

func mustCreate(t testing.TB, fsys *FS, name string) int {
	t.Helper()
	fd, err := fsys.Create(name)
	require.NoError(t, err)
	return fd
}

func mustWrite(t testing.TB, fsys *FS, fd int, data []byte) {
	t.Helper()
	n, err := fsys.Write(fd, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
}

func mustSeek(t testing.TB, fsys *FS, fd int, offset int64, whence int) {
	t.Helper()
	_, err := fsys.Seek(fd, offset, whence)
	require.NoError(t, err)
}

func mustRead(t testing.TB, fsys *FS, fd int, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	got, err := fsys.Read(fd, buf)
	require.NoError(t, err)
	return buf[:got]
}
