package bfs

import (
	"errors"
	"fmt"
)

var (
	errUnaligned     = errors.New("buffer not aligned to block size")
	errInvalidStart  = errors.New("invalid startBlock")
	errInvalidErase  = errors.New("invalid erase parameters")
	errPastEndOfDisk = errors.New("access past end of device")
)

// BytesBlocks is a BlockDevice backed by a contiguous byte slice.
type BytesBlocks struct {
	blk  blkIdxer
	buf  []byte
	mode Mode
}

// NewBytesBlocks returns a zeroed read-write in-memory device of numBlocks blocks.
func NewBytesBlocks(numBlocks int) *BytesBlocks {
	blk, _ := makeBlockIndexer(BlockSize)
	return &BytesBlocks{
		blk:  blk,
		buf:  make([]byte, BlockSize*numBlocks),
		mode: ModeRW,
	}
}

func (b *BytesBlocks) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	if b.blk.off(int64(len(dst))) != 0 {
		return 0, errUnaligned
	} else if startBlock < 0 {
		return 0, errInvalidStart
	}
	off := startBlock * b.blk.size()
	end := off + int64(len(dst))
	if end > int64(len(b.buf)) {
		return 0, fmt.Errorf("read %d > %d: %w", end, len(b.buf), errPastEndOfDisk)
	}
	return copy(dst, b.buf[off:end]), nil
}

func (b *BytesBlocks) WriteBlocks(data []byte, startBlock int64) (int, error) {
	if b.blk.off(int64(len(data))) != 0 {
		return 0, errUnaligned
	} else if startBlock < 0 {
		return 0, errInvalidStart
	} else if b.mode&ModeWrite == 0 {
		return 0, ErrDenied
	}
	off := startBlock * b.blk.size()
	end := off + int64(len(data))
	if end > int64(len(b.buf)) {
		return 0, fmt.Errorf("write %d > %d: %w", end, len(b.buf), errPastEndOfDisk)
	}
	return copy(b.buf[off:end], data), nil
}

func (b *BytesBlocks) EraseBlocks(startBlock, numBlocks int64) error {
	if startBlock < 0 || numBlocks <= 0 {
		return errInvalidErase
	} else if b.mode&ModeWrite == 0 {
		return ErrDenied
	}
	start := startBlock * b.blk.size()
	end := start + numBlocks*b.blk.size()
	if end > int64(len(b.buf)) {
		return errPastEndOfDisk
	}
	clear(b.buf[start:end])
	return nil
}

// Size returns the capacity of the device in bytes.
func (b *BytesBlocks) Size() int64 {
	return int64(len(b.buf))
}

// Bytes returns the raw contents of the device.
func (b *BytesBlocks) Bytes() []byte {
	return b.buf
}

// SetReadOnly makes subsequent writes to the device fail.
func (b *BytesBlocks) SetReadOnly() {
	b.mode = ModeRead
}

// Mode returns 0 for no connection/prohibited access, ModeRead for read-only, ModeRW for read-write.
func (b *BytesBlocks) Mode() Mode {
	return b.mode
}

// BlockMap is a sparse BlockDevice that only holds blocks that were written.
// Unwritten blocks read as zeros.
type BlockMap struct {
	numBlocks int64
	data      map[int64]*[BlockSize]byte
}

// NewBlockMap returns an empty sparse in-memory device of numBlocks blocks.
func NewBlockMap(numBlocks int64) *BlockMap {
	return &BlockMap{
		numBlocks: numBlocks,
		data:      make(map[int64]*[BlockSize]byte),
	}
}

func (b *BlockMap) checkRange(buflen int, startBlock int64) (nblk int64, err error) {
	if buflen%BlockSize != 0 {
		return 0, errUnaligned
	} else if startBlock < 0 {
		return 0, errInvalidStart
	}
	nblk = int64(buflen / BlockSize)
	if startBlock+nblk > b.numBlocks {
		return 0, errPastEndOfDisk
	}
	return nblk, nil
}

func (b *BlockMap) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	nblk, err := b.checkRange(len(dst), startBlock)
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < nblk; i++ {
		blk := dst[i*BlockSize : (i+1)*BlockSize]
		if stored, ok := b.data[startBlock+i]; ok {
			copy(blk, stored[:])
		} else {
			clear(blk)
		}
	}
	return len(dst), nil
}

func (b *BlockMap) WriteBlocks(data []byte, startBlock int64) (int, error) {
	nblk, err := b.checkRange(len(data), startBlock)
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < nblk; i++ {
		stored, ok := b.data[startBlock+i]
		if !ok {
			stored = new([BlockSize]byte)
			b.data[startBlock+i] = stored
		}
		copy(stored[:], data[i*BlockSize:])
	}
	return len(data), nil
}

func (b *BlockMap) EraseBlocks(startBlock, numBlocks int64) error {
	if startBlock < 0 || numBlocks <= 0 {
		return errInvalidErase
	}
	end := startBlock + numBlocks
	if end < startBlock {
		return errors.New("overflow")
	} else if end > b.numBlocks {
		return errPastEndOfDisk
	}
	if int64(len(b.data)) > numBlocks {
		// Optimized for maps with many entries.
		for i := startBlock; i < end; i++ {
			delete(b.data, i)
		}
	} else {
		// Optimized for maps with few entries.
		for blkidx := range b.data {
			if blkidx >= startBlock && blkidx < end {
				delete(b.data, blkidx)
			}
		}
	}
	return nil
}

// Size returns the capacity of the device in bytes.
func (b *BlockMap) Size() int64 {
	return b.numBlocks * BlockSize
}

// Stored returns the number of blocks held in memory.
func (b *BlockMap) Stored() int {
	return len(b.data)
}

func (b *BlockMap) Mode() Mode {
	return ModeRW
}
