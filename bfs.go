package bfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
)

const (
	// BlockSize is the size in bytes of every block on a BFS device.
	BlockSize = 512

	inodeSize       = 32
	inodesPerBlock  = BlockSize / inodeSize
	direntSize      = 32
	direntsPerBlock = BlockSize / direntSize
	numDirect       = 5
	ptrSize         = 4
	ptrsPerBlock    = BlockSize / ptrSize
	maxFileBlocks   = numDirect + ptrsPerBlock

	// MaxFileSize is the largest size in bytes a single file can grow to:
	// five direct blocks plus one indirect block of block pointers.
	MaxFileSize = maxFileBlocks * BlockSize

	// MaxNameLen is the maximum length of a file name in bytes after normalization.
	MaxNameLen = 27

	badBlock = ^uint32(0)
)

// BlockDevice is the block store BFS is mounted on. Blocks are addressed by
// absolute device block number (DBN). Buffers passed to ReadBlocks and
// WriteBlocks must be a multiple of BlockSize in length.
type BlockDevice interface {
	ReadBlocks(dst []byte, startBlock int64) (int, error)
	WriteBlocks(data []byte, startBlock int64) (int, error)
	EraseBlocks(startBlock, numBlocks int64) error
	// Mode returns 0 for no connection/prohibited access, ModeRead for read-only, ModeRW for read-write.
	Mode() Mode
}

// sizer is implemented by devices that know their own capacity in bytes.
type sizer interface {
	Size() int64
}

// FS is a mounted BFS volume. It owns the open file table of the session;
// descriptors returned by one FS are meaningless to another.
//
// FS is not safe for concurrent use.
type FS struct {
	device BlockDevice
	perm   Mode
	blk    blkIdxer
	geo    geometry
	win    windowHandler
	free   freeList
	oft    openFileTable
	// staging is the read/write staging region, grown to fit the largest span requested so far.
	staging []byte
	log     *slog.Logger
}

// geometry is the decoded layout of a volume. Regions are contiguous and in this order.
type geometry struct {
	numBlocks   uint32
	numInodes   uint32
	inodeStart  uint32
	inodeBlocks uint32
	dirStart    uint32
	dirBlocks   uint32
	dataStart   uint32
}

func (g *geometry) dirSlots() int { return int(g.dirBlocks) * direntsPerBlock }

// SetLogger sets the logger used for debug and error output. A nil logger discards all output.
func (fsys *FS) SetLogger(l *slog.Logger) {
	fsys.log = l
}

// validate checks the FS is mounted.
func (fsys *FS) validate() error {
	if fsys.device == nil {
		return ErrNotReady
	}
	return nil
}

func (fsys *FS) readBlock(dbn uint32, dst []byte) error {
	if dbn >= fsys.geo.numBlocks {
		fsys.logerror("readBlock:out of range", slog.Uint64("dbn", uint64(dbn)))
		return ErrIntErr
	}
	if _, err := fsys.device.ReadBlocks(dst[:BlockSize], int64(dbn)); err != nil {
		fsys.logerror("readBlock", slog.Uint64("dbn", uint64(dbn)), slog.String("err", err.Error()))
		return fmt.Errorf("read block %d: %w: %w", dbn, ErrDiskErr, err)
	}
	return nil
}

func (fsys *FS) writeBlock(dbn uint32, data []byte) error {
	if dbn < fsys.geo.dataStart || dbn >= fsys.geo.numBlocks {
		fsys.logerror("writeBlock:out of data region", slog.Uint64("dbn", uint64(dbn)))
		return ErrIntErr
	}
	if fsys.win.sect == dbn {
		fsys.win.invalidate()
	}
	if _, err := fsys.device.WriteBlocks(data[:BlockSize], int64(dbn)); err != nil {
		fsys.logerror("writeBlock", slog.Uint64("dbn", uint64(dbn)), slog.String("err", err.Error()))
		return fmt.Errorf("write block %d: %w: %w", dbn, ErrDiskErr, err)
	}
	return nil
}

func (fsys *FS) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if fsys.log == nil {
		return
	}
	fsys.log.LogAttrs(context.Background(), level, msg, attrs...)
}

func (fsys *FS) debug(msg string, attrs ...slog.Attr) {
	fsys.logattrs(slog.LevelDebug, msg, attrs...)
}
func (fsys *FS) info(msg string, attrs ...slog.Attr) {
	fsys.logattrs(slog.LevelInfo, msg, attrs...)
}
func (fsys *FS) warn(msg string, attrs ...slog.Attr) {
	fsys.logattrs(slog.LevelWarn, msg, attrs...)
}
func (fsys *FS) logerror(msg string, attrs ...slog.Attr) {
	fsys.logattrs(slog.LevelError, msg, attrs...)
}

// blkIdxer is a helper for calculating block indexes and offsets.
type blkIdxer struct {
	blockshift int64
	blockmask  int64
}

func makeBlockIndexer(blockSize int) (blkIdxer, error) {
	if blockSize <= 0 {
		return blkIdxer{}, errors.New("blockSize must be positive and non-zero")
	}
	tz := bits.TrailingZeros(uint(blockSize))
	if blockSize>>tz != 1 {
		return blkIdxer{}, errors.New("blockSize must be a power of 2")
	}
	blk := blkIdxer{
		blockshift: int64(tz),
		blockmask:  (1 << tz) - 1,
	}
	return blk, nil
}

// size returns the size of a block in bytes.
func (blk *blkIdxer) size() int64 {
	return 1 << blk.blockshift
}

// off gets the offset of the byte at byteIdx from the start of its block.
func (blk *blkIdxer) off(byteIdx int64) int64 {
	return byteIdx & blk.blockmask
}

// idx gets the block index that contains the byte at byteIdx.
func (blk *blkIdxer) idx(byteIdx int64) int64 {
	return byteIdx >> blk.blockshift
}

// span returns the first block and the number of blocks touched by the
// byte range [start, start+n). n must be positive.
func (blk *blkIdxer) span(start, n int64) (first, count int64) {
	first = blk.idx(start)
	last := blk.idx(start + n - 1)
	return first, last - first + 1
}

// ceilDiv returns ceil(a/b) for positive b.
func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}
