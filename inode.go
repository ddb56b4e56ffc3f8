package bfs

import (
	"fmt"
	"log/slog"
)

// inodeSlot moves the window onto the block holding inode inum and returns a
// view of its record. The view is only valid until the next window move.
func (fsys *FS) inodeSlot(inum uint32) (inodeRecord, error) {
	if inum >= fsys.geo.numInodes {
		fsys.logerror("inodeSlot:bad inum", slog.Uint64("inum", uint64(inum)))
		return inodeRecord{}, ErrIntErr
	}
	sect := fsys.geo.inodeStart + inum/inodesPerBlock
	if fr := fsys.win.move(sect); fr != frOK {
		return inodeRecord{}, fr
	}
	off := (inum % inodesPerBlock) * inodeSize
	return inodeRecord{data: fsys.win.win[off : off+inodeSize]}, nil
}

// readInode returns the decoded inode record of inum.
func (fsys *FS) readInode(inum uint32) (inode, error) {
	rec, err := fsys.inodeSlot(inum)
	if err != nil {
		return inode{}, err
	}
	return rec.decode(), nil
}

func (fsys *FS) writeInode(inum uint32, ino *inode) error {
	rec, err := fsys.inodeSlot(inum)
	if err != nil {
		return err
	}
	rec.encode(ino)
	if fr := fsys.win.commit(); fr != frOK {
		return fr
	}
	return nil
}

// getSize returns the recorded size of inum in bytes.
func (fsys *FS) getSize(inum uint32) (int64, error) {
	ino, err := fsys.readInode(inum)
	if err != nil {
		return 0, err
	}
	return int64(ino.size), nil
}

// setSize records a new size for inum.
func (fsys *FS) setSize(inum uint32, size int64) error {
	if size < 0 || size > MaxFileSize {
		return ErrFileTooLarge
	}
	ino, err := fsys.readInode(inum)
	if err != nil {
		return err
	}
	ino.size = uint32(size)
	return fsys.writeInode(inum, &ino)
}

// allocInode claims the lowest numbered free inode and returns it zeroed and in use.
func (fsys *FS) allocInode() (uint32, error) {
	for inum := uint32(0); inum < fsys.geo.numInodes; inum++ {
		ino, err := fsys.readInode(inum)
		if err != nil {
			return 0, err
		}
		if ino.inUse() {
			continue
		}
		ino = inode{flags: inoFlagInUse}
		if err := fsys.writeInode(inum, &ino); err != nil {
			return 0, err
		}
		fsys.debug("inode allocated", slog.Uint64("inum", uint64(inum)))
		return inum, nil
	}
	return 0, ErrNoInode
}

// releaseInode frees the blocks of inum and marks it unused.
func (fsys *FS) releaseInode(inum uint32) error {
	if err := fsys.truncate(inum); err != nil {
		return err
	}
	return fsys.writeInode(inum, &inode{})
}

// truncate frees every block mapped by inum and sets its size to 0.
func (fsys *FS) truncate(inum uint32) error {
	ino, err := fsys.readInode(inum)
	if err != nil {
		return err
	}
	for i, dbn := range ino.direct {
		if dbn != 0 {
			fsys.free.free(dbn)
			ino.direct[i] = 0
		}
	}
	if ino.indirect != 0 {
		if fr := fsys.win.move(ino.indirect); fr != frOK {
			return fr
		}
		pb := ptrBlock{data: fsys.win.win[:]}
		for i := 0; i < ptrsPerBlock; i++ {
			if dbn := pb.Entry(i); dbn != 0 {
				fsys.free.free(dbn)
			}
		}
		fsys.free.free(ino.indirect)
		fsys.win.invalidate()
		ino.indirect = 0
	}
	ino.size = 0
	return fsys.writeInode(inum, &ino)
}

// blockCount returns the number of data blocks mapped by inum, not counting the indirect block.
func (fsys *FS) blockCount(inum uint32) (int, error) {
	ino, err := fsys.readInode(inum)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, dbn := range ino.direct {
		if dbn != 0 {
			n++
		}
	}
	if ino.indirect == 0 {
		return n, nil
	}
	if fr := fsys.win.move(ino.indirect); fr != frOK {
		return 0, fr
	}
	pb := ptrBlock{data: fsys.win.win[:]}
	for i := 0; i < ptrsPerBlock; i++ {
		if pb.Entry(i) != 0 {
			n++
		}
	}
	return n, nil
}

// resolve maps file block fbn of inum to its device block. It returns 0 if
// the block was never written.
func (fsys *FS) resolve(inum uint32, fbn int64) (uint32, error) {
	if fbn < 0 || fbn >= maxFileBlocks {
		return 0, ErrFileTooLarge
	}
	ino, err := fsys.readInode(inum)
	if err != nil {
		return 0, err
	}
	if fbn < numDirect {
		return ino.direct[fbn], nil
	}
	if ino.indirect == 0 {
		return 0, nil
	}
	if fr := fsys.win.move(ino.indirect); fr != frOK {
		return 0, fr
	}
	pb := ptrBlock{data: fsys.win.win[:]}
	return pb.Entry(int(fbn - numDirect)), nil
}

// resolveOrAllocate maps file block fbn of inum to its device block,
// allocating a zeroed block (and the indirect block) if fbn is unmapped.
func (fsys *FS) resolveOrAllocate(inum uint32, fbn int64) (uint32, error) {
	dbn, err := fsys.resolve(inum, fbn)
	if err != nil || dbn != 0 {
		return dbn, err
	}
	ino, err := fsys.readInode(inum)
	if err != nil {
		return 0, err
	}
	if fbn < numDirect {
		dbn, err = fsys.allocBlock()
		if err != nil {
			return 0, err
		}
		ino.direct[fbn] = dbn
		return dbn, fsys.writeInode(inum, &ino)
	}
	if ino.indirect == 0 {
		ind, err := fsys.allocBlock()
		if err != nil {
			return 0, err
		}
		ino.indirect = ind
		if err := fsys.writeInode(inum, &ino); err != nil {
			return 0, err
		}
	}
	dbn, err = fsys.allocBlock()
	if err != nil {
		return 0, err
	}
	if fr := fsys.win.move(ino.indirect); fr != frOK {
		return 0, fr
	}
	pb := ptrBlock{data: fsys.win.win[:]}
	pb.SetEntry(int(fbn-numDirect), dbn)
	if fr := fsys.win.commit(); fr != frOK {
		return 0, fr
	}
	return dbn, nil
}

// allocBlock takes a block off the free list and zeroes it on the device.
func (fsys *FS) allocBlock() (uint32, error) {
	dbn, ok := fsys.free.allocate()
	if !ok {
		return 0, ErrNoSpace
	}
	if fsys.win.sect == dbn {
		fsys.win.invalidate()
	}
	if err := fsys.device.EraseBlocks(int64(dbn), 1); err != nil {
		fsys.free.free(dbn)
		return 0, fmt.Errorf("erase block %d: %w: %w", dbn, ErrDiskErr, err)
	}
	fsys.debug("block allocated", slog.Uint64("dbn", uint64(dbn)), slog.Uint64("free", fsys.free.count()))
	return dbn, nil
}
