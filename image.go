package bfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// DiskImage is a BlockDevice backed by a disk image file. The image is
// locked for the lifetime of the DiskImage so that two processes cannot
// mount it at once.
type DiskImage struct {
	f         *os.File
	blk       blkIdxer
	numBlocks int64
	mode      Mode
}

// CreateImage creates (or truncates) the disk image at path and sizes it to
// numBlocks zeroed blocks. Failures wrap ErrDiskCreate.
func CreateImage(path string, numBlocks int) (*DiskImage, error) {
	if numBlocks <= 0 {
		return nil, fmt.Errorf("%w: %d blocks", ErrDiskCreate, numBlocks)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiskCreate, err)
	}
	if err := lockFile(f, true); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrDiskCreate, err)
	}
	// Truncate twice so a previous image's contents do not survive.
	if err := f.Truncate(0); err == nil {
		err = f.Truncate(int64(numBlocks) * BlockSize)
	}
	if err != nil {
		unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrDiskCreate, err)
	}
	return newDiskImage(f, int64(numBlocks), ModeRW), nil
}

// OpenImage opens an existing disk image. It returns ErrNoDisk if there is
// no file at path and ErrLocked if another process holds the image.
func OpenImage(path string, mode Mode) (*DiskImage, error) {
	if mode&^ModeRW != 0 || mode == 0 {
		return nil, errInvalidMode
	}
	flag := os.O_RDONLY
	if mode&ModeWrite != 0 {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDisk, path)
	} else if err != nil {
		return nil, err
	}
	if err := lockFile(f, mode&ModeWrite != 0); err != nil {
		f.Close()
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		unlockFile(f)
		f.Close()
		return nil, err
	}
	return newDiskImage(f, st.Size()/BlockSize, mode), nil
}

func newDiskImage(f *os.File, numBlocks int64, mode Mode) *DiskImage {
	blk, _ := makeBlockIndexer(BlockSize)
	return &DiskImage{f: f, blk: blk, numBlocks: numBlocks, mode: mode}
}

func (d *DiskImage) checkRange(buflen int, startBlock int64) (off int64, err error) {
	if d.f == nil {
		return 0, fs.ErrClosed
	} else if d.blk.off(int64(buflen)) != 0 {
		return 0, errUnaligned
	} else if startBlock < 0 {
		return 0, errInvalidStart
	} else if startBlock+d.blk.idx(int64(buflen)) > d.numBlocks {
		return 0, errPastEndOfDisk
	}
	return startBlock * d.blk.size(), nil
}

func (d *DiskImage) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	off, err := d.checkRange(len(dst), startBlock)
	if err != nil {
		return 0, err
	}
	n, err := d.f.ReadAt(dst, off)
	if err == io.EOF && n == len(dst) {
		err = nil
	}
	return n, err
}

func (d *DiskImage) WriteBlocks(data []byte, startBlock int64) (int, error) {
	off, err := d.checkRange(len(data), startBlock)
	if err != nil {
		return 0, err
	} else if d.mode&ModeWrite == 0 {
		return 0, ErrDenied
	}
	return d.f.WriteAt(data, off)
}

func (d *DiskImage) EraseBlocks(startBlock, numBlocks int64) error {
	if numBlocks <= 0 {
		return errInvalidErase
	}
	var zero [BlockSize]byte
	for i := int64(0); i < numBlocks; i++ {
		if _, err := d.WriteBlocks(zero[:], startBlock+i); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the size of the image in bytes.
func (d *DiskImage) Size() int64 {
	return d.numBlocks * BlockSize
}

// Mode returns 0 for no connection/prohibited access, ModeRead for read-only, ModeRW for read-write.
func (d *DiskImage) Mode() Mode {
	if d.f == nil {
		return 0
	}
	return d.mode
}

// Sync commits the image contents to stable storage.
func (d *DiskImage) Sync() error {
	if d.f == nil {
		return fs.ErrClosed
	}
	return d.f.Sync()
}

// Close syncs, unlocks and closes the image.
func (d *DiskImage) Close() error {
	if d.f == nil {
		return fs.ErrClosed
	}
	var err error
	if d.mode&ModeWrite != 0 {
		err = d.f.Sync()
	}
	unlockFile(d.f)
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	d.f = nil
	return err
}
