package bfs

const maxOpenFiles = 64

// oftEntry is one open instance of a file.
type oftEntry struct {
	inum uint32
	curs int64
	used bool
}

// openFileTable maps file descriptors to open file entries. A descriptor is
// the index of its entry; released slots are reused lowest first.
type openFileTable struct {
	entries []oftEntry
}

func (t *openFileTable) newEntry(inum uint32) (int, error) {
	for fd := range t.entries {
		if !t.entries[fd].used {
			t.entries[fd] = oftEntry{inum: inum, used: true}
			return fd, nil
		}
	}
	if len(t.entries) >= maxOpenFiles {
		return -1, ErrTooManyOpenFiles
	}
	t.entries = append(t.entries, oftEntry{inum: inum, used: true})
	return len(t.entries) - 1, nil
}

func (t *openFileTable) get(fd int) (*oftEntry, error) {
	if fd < 0 || fd >= len(t.entries) || !t.entries[fd].used {
		return nil, ErrInvalidObject
	}
	return &t.entries[fd], nil
}

// entryFor returns the inode number and cursor bound to fd.
func (t *openFileTable) entryFor(fd int) (inum uint32, curs int64, err error) {
	e, err := t.get(fd)
	if err != nil {
		return 0, 0, err
	}
	return e.inum, e.curs, nil
}

func (t *openFileTable) setCursor(fd int, curs int64) error {
	e, err := t.get(fd)
	if err != nil {
		return err
	}
	if curs < 0 {
		return ErrInvalidParameter
	}
	e.curs = curs
	return nil
}

func (t *openFileTable) release(fd int) error {
	e, err := t.get(fd)
	if err != nil {
		return err
	}
	*e = oftEntry{}
	return nil
}

// isOpen reports whether any descriptor refers to inum.
func (t *openFileTable) isOpen(inum uint32) bool {
	for i := range t.entries {
		if t.entries[i].used && t.entries[i].inum == inum {
			return true
		}
	}
	return false
}

// numOpen returns the number of descriptors in use.
func (t *openFileTable) numOpen() (n int) {
	for i := range t.entries {
		if t.entries[i].used {
			n++
		}
	}
	return n
}

func (t *openFileTable) reset() {
	t.entries = t.entries[:0]
}
