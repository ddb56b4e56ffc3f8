package bfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreeList(t *testing.T) {
	r := require.New(t)
	var fl freeList
	_, ok := fl.allocate()
	r.False(ok, "zero value free list has no blocks")
	r.Zero(fl.count())

	fl.reset(3, 8)
	r.EqualValues(5, fl.count())
	r.False(fl.isFree(2))
	r.True(fl.isFree(3))
	r.False(fl.isFree(8))

	dbn, ok := fl.allocate()
	r.True(ok)
	r.EqualValues(3, dbn, "lowest block first")
	r.True(fl.markUsed(5))
	r.False(fl.markUsed(5), "block already in use")
	dbn, _ = fl.allocate()
	r.EqualValues(4, dbn)
	dbn, _ = fl.allocate()
	r.EqualValues(6, dbn)

	fl.free(3)
	dbn, _ = fl.allocate()
	r.EqualValues(3, dbn)
	dbn, _ = fl.allocate()
	r.EqualValues(7, dbn)
	_, ok = fl.allocate()
	r.False(ok)
}

func TestFreeListRebuild(t *testing.T) {
	r := require.New(t)
	fsys, dev := initTestFS(t, 100, 16)
	var used []uint32
	for i, size := range []int{3 * BlockSize, 8*BlockSize + 1, 1} {
		fd := mustCreate(t, fsys, string(rune('a'+i)))
		mustWrite(t, fsys, fd, pattern(size, 0))
		r.NoError(fsys.Close(fd))
	}
	for dbn := fsys.geo.dataStart; dbn < fsys.geo.numBlocks; dbn++ {
		if !fsys.free.isFree(dbn) {
			used = append(used, dbn)
		}
	}
	// 3 + 9 + 1 data blocks and one indirect block.
	r.Len(used, 14)

	var again FS
	r.NoError(again.Mount(dev, ModeRW))
	for dbn := fsys.geo.dataStart; dbn < fsys.geo.numBlocks; dbn++ {
		r.Equal(fsys.free.isFree(dbn), again.free.isFree(dbn), "dbn %d", dbn)
	}
}
