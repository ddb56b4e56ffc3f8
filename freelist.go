package bfs

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
)

// freeList tracks free data blocks. It is not stored on disk; Mount rebuilds
// it from the block maps of in-use inodes.
type freeList struct {
	bm *roaring.Bitmap
}

// reset marks every block in [start, end) as free.
func (fl *freeList) reset(start, end uint32) {
	fl.bm = roaring.New()
	fl.bm.AddRange(uint64(start), uint64(end))
}

// markUsed removes dbn from the free set. It returns false if dbn was not free,
// which during a rebuild means two block maps claim the same block.
func (fl *freeList) markUsed(dbn uint32) bool {
	return fl.bm.CheckedRemove(dbn)
}

// allocate takes the lowest numbered free block.
func (fl *freeList) allocate() (dbn uint32, ok bool) {
	if fl.bm == nil || fl.bm.IsEmpty() {
		return 0, false
	}
	dbn = fl.bm.Minimum()
	fl.bm.Remove(dbn)
	return dbn, true
}

func (fl *freeList) free(dbn uint32) {
	fl.bm.Add(dbn)
}

func (fl *freeList) isFree(dbn uint32) bool {
	return fl.bm != nil && fl.bm.Contains(dbn)
}

func (fl *freeList) count() uint64 {
	if fl.bm == nil {
		return 0
	}
	return fl.bm.GetCardinality()
}

// rebuildFreeList scans the inode table and removes every block referenced by
// an in-use inode from the free list.
func (fsys *FS) rebuildFreeList() error {
	fsys.free.reset(fsys.geo.dataStart, fsys.geo.numBlocks)
	claim := func(inum, dbn uint32) error {
		if dbn == 0 {
			return nil
		}
		if dbn < fsys.geo.dataStart || dbn >= fsys.geo.numBlocks || !fsys.free.markUsed(dbn) {
			fsys.logerror("rebuildFreeList:bad block pointer",
				slog.Uint64("inum", uint64(inum)), slog.Uint64("dbn", uint64(dbn)))
			return ErrIntErr
		}
		return nil
	}
	for inum := uint32(0); inum < fsys.geo.numInodes; inum++ {
		ino, err := fsys.readInode(inum)
		if err != nil {
			return err
		}
		if !ino.inUse() {
			continue
		}
		for _, dbn := range ino.direct {
			if err := claim(inum, dbn); err != nil {
				return err
			}
		}
		if ino.indirect == 0 {
			continue
		}
		if err := claim(inum, ino.indirect); err != nil {
			return err
		}
		if fr := fsys.win.move(ino.indirect); fr != frOK {
			return fr
		}
		pb := ptrBlock{data: fsys.win.win[:]}
		for i := 0; i < ptrsPerBlock; i++ {
			if err := claim(inum, pb.Entry(i)); err != nil {
				return err
			}
		}
	}
	fsys.debug("free list rebuilt", slog.Uint64("free", fsys.free.count()))
	return nil
}
