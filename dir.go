package bfs

import (
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// cleanName validates a file name and returns its NFC normal form, which is
// the form stored in and compared against the directory.
func cleanName(name string) (string, error) {
	name = norm.NFC.String(name)
	if len(name) == 0 || len(name) > MaxNameLen || strings.ContainsAny(name, "/\x00") {
		return "", ErrInvalidName
	}
	return name, nil
}

// dirSlot moves the window onto the directory block holding entry slot and
// returns a view of it. The view is only valid until the next window move.
func (fsys *FS) dirSlot(slot int) (dirEntry, error) {
	if slot < 0 || slot >= fsys.geo.dirSlots() {
		return dirEntry{}, ErrIntErr
	}
	sect := fsys.geo.dirStart + uint32(slot/direntsPerBlock)
	if fr := fsys.win.move(sect); fr != frOK {
		return dirEntry{}, fr
	}
	off := (slot % direntsPerBlock) * direntSize
	return dirEntry{data: fsys.win.win[off : off+direntSize]}, nil
}

// findEntry returns the slot and inode number of the entry named name, which
// must already be clean.
func (fsys *FS) findEntry(name string) (slot int, inum uint32, err error) {
	for slot = 0; slot < fsys.geo.dirSlots(); slot++ {
		de, err := fsys.dirSlot(slot)
		if err != nil {
			return -1, 0, err
		}
		if !de.isFree() && de.name() == name {
			return slot, de.inum(), nil
		}
	}
	return -1, 0, ErrNotFound
}

// lookup returns the inode number of the file called name.
func (fsys *FS) lookup(name string) (uint32, error) {
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	_, inum, err := fsys.findEntry(name)
	return inum, err
}

// createOrTruncate returns the inode of name, truncated to zero length if the
// file exists, or creates a new directory entry and inode for it.
func (fsys *FS) createOrTruncate(name string) (uint32, error) {
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	_, inum, err := fsys.findEntry(name)
	if err == nil {
		fsys.debug("truncating existing file", slog.String("name", name), slog.Uint64("inum", uint64(inum)))
		return inum, fsys.truncate(inum)
	} else if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	free := -1
	for slot := 0; slot < fsys.geo.dirSlots(); slot++ {
		de, err := fsys.dirSlot(slot)
		if err != nil {
			return 0, err
		}
		if de.isFree() {
			free = slot
			break
		}
	}
	if free < 0 {
		return 0, ErrDirFull
	}
	inum, err = fsys.allocInode()
	if err != nil {
		return 0, err
	}
	de, err := fsys.dirSlot(free)
	if err != nil {
		return 0, err
	}
	de.set(name, inum)
	if fr := fsys.win.commit(); fr != frOK {
		return 0, fr
	}
	fsys.debug("file created", slog.String("name", name), slog.Uint64("inum", uint64(inum)))
	return inum, nil
}

// unlink removes the directory entry of name and releases its inode and blocks.
func (fsys *FS) unlink(name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	slot, inum, err := fsys.findEntry(name)
	if err != nil {
		return err
	}
	if fsys.oft.isOpen(inum) {
		return ErrLocked
	}
	// An in-use inode must always be named by an entry.
	if err := fsys.releaseInode(inum); err != nil {
		return err
	}
	de, err := fsys.dirSlot(slot)
	if err != nil {
		return err
	}
	de.clear()
	if fr := fsys.win.commit(); fr != frOK {
		return fr
	}
	return nil
}

// forEachEntry calls fn with the name and inode number of every file in
// directory order. fn must not modify the volume.
func (fsys *FS) forEachEntry(fn func(name string, inum uint32) error) error {
	for slot := 0; slot < fsys.geo.dirSlots(); slot++ {
		de, err := fsys.dirSlot(slot)
		if err != nil {
			return err
		}
		if de.isFree() {
			continue
		}
		if err := fn(de.name(), de.inum()); err != nil {
			return err
		}
	}
	return nil
}
