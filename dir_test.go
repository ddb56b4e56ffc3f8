package bfs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	for _, tc := range []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "a.txt", want: "a.txt"},
		{name: strings.Repeat("n", MaxNameLen), want: strings.Repeat("n", MaxNameLen)},
		{name: strings.Repeat("n", MaxNameLen+1), wantErr: true},
		{name: "", wantErr: true},
		{name: "dir/file", wantErr: true},
		{name: "nul\x00", wantErr: true},
		// Decomposed "é" normalizes to its single rune form.
		{name: "cafe\u0301", want: "caf\u00e9"},
		{name: "a ", want: "a "},
		{name: "  ", want: "  "},
	} {
		got, err := cleanName(tc.name)
		if tc.wantErr {
			require.ErrorIs(t, err, ErrInvalidName, "name %q", tc.name)
			continue
		}
		require.NoError(t, err, "name %q", tc.name)
		require.Equal(t, tc.want, got)
	}
}

func TestNormalizedNamesMatch(t *testing.T) {
	r := require.New(t)
	fsys, _ := initTestFS(t, 64, 16)
	fd := mustCreate(t, fsys, "cafe\u0301")
	mustWrite(t, fsys, fd, []byte("coffee"))
	r.NoError(fsys.Close(fd))

	fd, err := fsys.Open("caf\u00e9")
	r.NoError(err)
	r.Equal("coffee", string(mustRead(t, fsys, fd, 10)))
	info, err := fsys.Stat("cafe\u0301")
	r.NoError(err)
	r.Equal("caf\u00e9", info.Name())
}

func TestCreateInvalidName(t *testing.T) {
	fsys, _ := initTestFS(t, 64, 16)
	_, err := fsys.Create(strings.Repeat("x", 40))
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = fsys.Open("")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestNoInodeLeft(t *testing.T) {
	r := require.New(t)
	// 4 inodes and a full block of 16 directory slots: inodes run out first.
	fsys, _ := initTestFS(t, 64, 4)
	for i := 0; i < 4; i++ {
		fd := mustCreate(t, fsys, fmt.Sprintf("f%d", i))
		r.NoError(fsys.Close(fd))
	}
	_, err := fsys.Create("one-too-many")
	r.ErrorIs(err, ErrNoInode)
	_, err = fsys.Stat("one-too-many")
	r.ErrorIs(err, ErrNotFound, "failed create must not leave a directory entry")

	// Freeing an inode makes room again.
	r.NoError(fsys.Remove("f2"))
	fd := mustCreate(t, fsys, "one-too-many")
	r.NoError(fsys.Close(fd))
}

func TestDirFull(t *testing.T) {
	r := require.New(t)
	fsys, dev := initTestFS(t, 64, 16)
	// Fill every directory slot with an entry whose inode is not in use so the
	// directory fills before the inode table.
	dirStart := int(fsys.geo.dirStart)
	r.NoError(fsys.Unmount())
	for slot := 0; slot < direntsPerBlock; slot++ {
		off := dirStart*BlockSize + slot*direntSize
		de := dirEntry{data: dev.Bytes()[off : off+direntSize]}
		de.set(fmt.Sprintf("ghost%d", slot), 0)
	}
	r.NoError(fsys.Mount(dev, ModeRW))
	_, err := fsys.Create("new")
	r.ErrorIs(err, ErrDirFull)
}

func TestRemove(t *testing.T) {
	r := require.New(t)
	fsys, _ := initTestFS(t, 200, 16)
	free := fsys.FreeBlocks()
	fd := mustCreate(t, fsys, "gone")
	mustWrite(t, fsys, fd, pattern(10*BlockSize, 0))
	// 10 data blocks plus the indirect block.
	r.Equal(free-11, fsys.FreeBlocks())

	r.ErrorIs(fsys.Remove("gone"), ErrLocked)
	r.NoError(fsys.Close(fd))
	r.NoError(fsys.Remove("gone"))
	r.Equal(free, fsys.FreeBlocks())

	_, err := fsys.Open("gone")
	r.ErrorIs(err, ErrNotFound)
	r.ErrorIs(fsys.Remove("gone"), ErrNotFound)

	// The freed inode and blocks are reused.
	fd = mustCreate(t, fsys, "again")
	mustWrite(t, fsys, fd, []byte("fresh"))
	mustSeek(t, fsys, fd, 0, 0)
	r.Equal("fresh", string(mustRead(t, fsys, fd, 100)))
}

func TestStatAndForEachFile(t *testing.T) {
	r := require.New(t)
	fsys, _ := initTestFS(t, 200, 16)
	sizes := map[string]int{
		"empty":  0,
		"one":    1,
		"block":  BlockSize,
		"direct": 5 * BlockSize,
		"spill":  6*BlockSize + 1,
	}
	for name, size := range sizes {
		fd := mustCreate(t, fsys, name)
		mustWrite(t, fsys, fd, pattern(size, 0))
		r.NoError(fsys.Close(fd))
	}

	info, err := fsys.Stat("spill")
	r.NoError(err)
	r.Equal("spill", info.Name())
	r.EqualValues(6*BlockSize+1, info.Size())
	r.Equal(7, info.Blocks())

	var names []string
	err = fsys.ForEachFile(func(fi *FileInfo) error {
		names = append(names, fi.Name())
		r.EqualValues(sizes[fi.Name()], fi.Size(), fi.Name())
		r.Equal(int(ceilDiv(uint32(fi.Size()), BlockSize)), fi.Blocks(), fi.Name())
		return nil
	})
	r.NoError(err)
	sort.Strings(names)
	r.Equal([]string{"block", "direct", "empty", "one", "spill"}, names)

	errStop := errors.New("stop")
	calls := 0
	err = fsys.ForEachFile(func(*FileInfo) error {
		calls++
		return errStop
	})
	r.ErrorIs(err, errStop)
	r.Equal(1, calls)
}

func TestHoleyFileBlocks(t *testing.T) {
	r := require.New(t)
	fsys, _ := initTestFS(t, 200, 16)
	fd := mustCreate(t, fsys, "holes")
	mustSeek(t, fsys, fd, 50*BlockSize, 0)
	mustWrite(t, fsys, fd, []byte{1})
	info, err := fsys.Stat("holes")
	r.NoError(err)
	r.EqualValues(50*BlockSize+1, info.Size())
	r.Equal(1, info.Blocks())
}

func TestNamesWithSpaces(t *testing.T) {
	r := require.New(t)
	fsys, _ := initTestFS(t, 64, 16)
	for _, name := range []string{"a ", "  ", " b", "a"} {
		fd := mustCreate(t, fsys, name)
		mustWrite(t, fsys, fd, []byte(name+"data"))
		r.NoError(fsys.Close(fd))
	}
	for _, name := range []string{"a ", "  ", " b", "a"} {
		fd, err := fsys.Open(name)
		r.NoError(err, "name %q", name)
		r.Equal(name+"data", string(mustRead(t, fsys, fd, 20)))
		r.NoError(fsys.Close(fd))
	}

	// Creating an existing name truncates it in place.
	fd := mustCreate(t, fsys, "a ")
	size, err := fsys.Size(fd)
	r.NoError(err)
	r.Zero(size)
	r.NoError(fsys.Close(fd))
	count := 0
	r.NoError(fsys.ForEachFile(func(fi *FileInfo) error {
		count++
		return nil
	}))
	r.Equal(4, count)
	info, err := fsys.Stat("a")
	r.NoError(err)
	r.EqualValues(5, info.Size())
}

// faultyBlocks fails every write to block failWrite.
type faultyBlocks struct {
	*BytesBlocks
	failWrite int64
}

var errInjectedWrite = errors.New("injected write fault")

func (f *faultyBlocks) WriteBlocks(data []byte, startBlock int64) (int, error) {
	if startBlock == f.failWrite {
		return 0, errInjectedWrite
	}
	return f.BytesBlocks.WriteBlocks(data, startBlock)
}

func TestRemoveKeepsEntryOnInodeFailure(t *testing.T) {
	r := require.New(t)
	_, dev := initTestFS(t, 64, 16)
	faulty := &faultyBlocks{BytesBlocks: dev, failWrite: -1}
	var fsys FS
	r.NoError(fsys.Mount(faulty, ModeRW))
	fd := mustCreate(t, &fsys, "victim")
	mustWrite(t, &fsys, fd, pattern(2*BlockSize, 0))
	r.NoError(fsys.Close(fd))

	faulty.failWrite = int64(fsys.geo.inodeStart)
	r.ErrorIs(fsys.Remove("victim"), ErrDiskErr)
	faulty.failWrite = -1

	_, err := fsys.Stat("victim")
	r.NoError(err, "entry must survive a failed inode release")
	r.NoError(fsys.Remove("victim"))
	_, err = fsys.Stat("victim")
	r.ErrorIs(err, ErrNotFound)

	// Nothing is left claimed after a remount.
	r.NoError(fsys.Unmount())
	r.NoError(fsys.Mount(faulty, ModeRW))
	r.EqualValues(64-3, fsys.FreeBlocks())
}
