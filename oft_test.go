package bfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenFileTable(t *testing.T) {
	r := require.New(t)
	var oft openFileTable
	for i := 0; i < maxOpenFiles; i++ {
		fd, err := oft.newEntry(uint32(i % 3))
		r.NoError(err)
		r.Equal(i, fd)
	}
	_, err := oft.newEntry(0)
	r.ErrorIs(err, ErrTooManyOpenFiles)
	r.Equal(maxOpenFiles, oft.numOpen())

	// Released slots are reused lowest first.
	r.NoError(oft.release(10))
	r.NoError(oft.release(3))
	r.ErrorIs(oft.release(3), ErrInvalidObject)
	fd, err := oft.newEntry(7)
	r.NoError(err)
	r.Equal(3, fd)
	fd, err = oft.newEntry(7)
	r.NoError(err)
	r.Equal(10, fd)

	inum, curs, err := oft.entryFor(10)
	r.NoError(err)
	r.EqualValues(7, inum)
	r.Zero(curs, "new entries start at cursor 0")
	r.NoError(oft.setCursor(10, 1234))
	_, curs, _ = oft.entryFor(10)
	r.EqualValues(1234, curs)
	r.ErrorIs(oft.setCursor(10, -1), ErrInvalidParameter)

	r.True(oft.isOpen(7))
	r.False(oft.isOpen(99))
	_, _, err = oft.entryFor(maxOpenFiles)
	r.ErrorIs(err, ErrInvalidObject)
	_, _, err = oft.entryFor(-1)
	r.ErrorIs(err, ErrInvalidObject)

	oft.reset()
	r.Zero(oft.numOpen())
	_, _, err = oft.entryFor(0)
	r.ErrorIs(err, ErrInvalidObject)
}

func TestTooManyOpenFiles(t *testing.T) {
	r := require.New(t)
	fsys, _ := initTestFS(t, 64, 16)
	fd := mustCreate(t, fsys, "f")
	for i := 1; i < maxOpenFiles; i++ {
		_, err := fsys.Open("f")
		r.NoError(err)
	}
	_, err := fsys.Open("f")
	r.ErrorIs(err, ErrTooManyOpenFiles)
	r.NoError(fsys.Close(fd))
	fd2, err := fsys.Open("f")
	r.NoError(err)
	r.Equal(fd, fd2)
}
