package bfs

import (
	"errors"
	"fmt"
)

const (
	// DefaultNumBlocks is the volume size used when FormatConfig.NumBlocks is 0.
	DefaultNumBlocks = 100
	// DefaultNumInodes is the inode count used when FormatConfig.NumInodes is 0.
	DefaultNumInodes = 16
)

type FormatConfig struct {
	// NumBlocks is the total size of the volume in blocks, metadata included.
	NumBlocks int
	// NumInodes is the maximum number of files on the volume.
	NumInodes int
}

func (cfg *FormatConfig) geometry() (geometry, error) {
	if cfg.NumBlocks == 0 {
		cfg.NumBlocks = DefaultNumBlocks
	}
	if cfg.NumInodes == 0 {
		cfg.NumInodes = DefaultNumInodes
	}
	if cfg.NumBlocks < 0 || cfg.NumInodes < 0 || cfg.NumBlocks > 1<<31 || cfg.NumInodes > 1<<20 {
		return geometry{}, errors.New("invalid Format argument")
	}
	g := geometry{
		numBlocks:  uint32(cfg.NumBlocks),
		numInodes:  uint32(cfg.NumInodes),
		inodeStart: 1,
	}
	g.inodeBlocks = ceilDiv(g.numInodes, inodesPerBlock)
	g.dirStart = g.inodeStart + g.inodeBlocks
	g.dirBlocks = ceilDiv(g.numInodes, direntsPerBlock)
	g.dataStart = g.dirStart + g.dirBlocks
	if !g.valid() {
		return geometry{}, fmt.Errorf("volume of %d blocks too small for %d inodes", cfg.NumBlocks, cfg.NumInodes)
	}
	return g, nil
}

// Formatter writes an empty BFS volume onto a block device.
type Formatter struct {
	window []byte
	// block device is temporarily used by the formatter to read/write blocks.
	bd BlockDevice
}

// Format initializes the superblock, inode table and directory of a new
// volume on bd. The data region is left as is; blocks are zeroed when
// allocated.
func (f *Formatter) Format(bd BlockDevice, cfg FormatConfig) error {
	if bd == nil {
		return errors.New("invalid Format argument")
	} else if bd.Mode()&ModeWrite == 0 {
		return ErrDenied
	}
	g, err := cfg.geometry()
	if err != nil {
		return err
	}
	if sz, ok := bd.(sizer); ok && sz.Size() < int64(g.numBlocks)*BlockSize {
		return fmt.Errorf("device of %d bytes too small for %d blocks", sz.Size(), g.numBlocks)
	}
	if len(f.window) < BlockSize {
		f.window = make([]byte, BlockSize)
	}
	f.bd = bd
	defer func() { f.bd = nil }()

	// Zero the inode table and directory.
	if err := f.bd.EraseBlocks(int64(g.inodeStart), int64(g.dataStart-g.inodeStart)); err != nil {
		return fmt.Errorf("format: %w: %w", ErrDiskErr, err)
	}
	clear(f.window)
	sb := superblock{data: f.window[:BlockSize]}
	sb.setGeometry(g)
	if _, err := f.bd.WriteBlocks(sb.data, 0); err != nil {
		return fmt.Errorf("format: %w: %w", ErrDiskErr, err)
	}
	return nil
}

// FormatImage creates a disk image at path and formats it. A failure to
// create the image file wraps ErrDiskCreate.
func FormatImage(path string, cfg FormatConfig) error {
	if _, err := cfg.geometry(); err != nil {
		return fmt.Errorf("%w: %w", ErrDiskCreate, err)
	}
	img, err := CreateImage(path, cfg.NumBlocks)
	if err != nil {
		return err
	}
	var f Formatter
	if err := f.Format(img, cfg); err != nil {
		img.Close()
		return err
	}
	return img.Close()
}
