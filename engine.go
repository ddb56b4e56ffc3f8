package bfs

import (
	"errors"
	"io"
	"log/slog"
)

// Read copies up to len(dst) bytes of the file open on fd, starting at its
// cursor, into dst. It returns the number of bytes copied, which is less
// than len(dst) when the read reaches the end of the file and 0 when the
// cursor is at or past it. The cursor advances by the returned count.
// dst is left untouched when nothing is copied.
func (fsys *FS) Read(fd int, dst []byte) (int, error) {
	if err := fsys.validate(); err != nil {
		return 0, err
	}
	inum, curs, err := fsys.oft.entryFor(fd)
	if err != nil {
		return 0, err
	}
	if len(dst) == 0 {
		return 0, nil
	}
	size, err := fsys.getSize(inum)
	if err != nil {
		return 0, err
	}
	if curs >= size {
		return 0, nil
	}
	n := min(int64(len(dst)), size-curs)

	first, nblk := fsys.blk.span(curs, n)
	staged, err := fsys.stage(inum, first, int(nblk))
	if err != nil {
		return 0, err
	}
	off := fsys.blk.off(curs)
	copy(dst[:n], staged[off:off+n])
	if err := fsys.oft.setCursor(fd, curs+n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Write writes all of src to the file open on fd starting at its cursor,
// allocating blocks as needed, and advances the cursor by the number of bytes
// written. The file grows when the write ends past its recorded size.
//
// If the volume runs out of blocks part way through, the blocks already
// written stay written: Write returns their byte count together with
// ErrNoSpace (or ErrFileTooLarge), and the cursor and size reflect them.
func (fsys *FS) Write(fd int, src []byte) (int, error) {
	if err := fsys.validate(); err != nil {
		return 0, err
	}
	if fsys.perm&ModeWrite == 0 {
		return 0, ErrDenied
	}
	inum, curs, err := fsys.oft.entryFor(fd)
	if err != nil {
		return 0, err
	}
	if len(src) == 0 {
		return 0, nil
	}
	size, err := fsys.getSize(inum)
	if err != nil {
		return 0, err
	}

	written := 0
	for written < len(src) {
		fbn := fsys.blk.idx(curs)
		off := int(fsys.blk.off(curs))
		chunk := min(len(src)-written, BlockSize-off)
		err = fsys.writeChunk(inum, fbn, off, src[written:written+chunk])
		if err != nil {
			break
		}
		written += chunk
		curs += int64(chunk)
		if err = fsys.oft.setCursor(fd, curs); err != nil {
			break
		}
	}
	if errors.Is(err, ErrNoSpace) || errors.Is(err, ErrFileTooLarge) {
		fsys.warn("write stopped short", slog.Uint64("inum", uint64(inum)),
			slog.Int("written", written), slog.Int("requested", len(src)), slog.String("err", err.Error()))
	}
	if written > 0 && curs > size {
		if serr := fsys.setSize(inum, curs); serr != nil && err == nil {
			err = serr
		}
	}
	return written, err
}

// writeChunk overlays data at byte offset off of file block fbn. Bytes of the
// block outside [off, off+len(data)) keep their previous contents.
func (fsys *FS) writeChunk(inum uint32, fbn int64, off int, data []byte) error {
	dbn, err := fsys.resolveOrAllocate(inum, fbn)
	if err != nil {
		return err
	}
	var blk []byte
	if len(data) == BlockSize {
		blk = fsys.stagingRegion(1)
	} else {
		blk, err = fsys.stage(inum, fbn, 1)
		if err != nil {
			return err
		}
	}
	copy(blk[off:], data)
	return fsys.writeBlock(dbn, blk)
}

// stagingRegion returns the staging region resized to exactly nblk blocks.
func (fsys *FS) stagingRegion(nblk int) []byte {
	need := nblk * BlockSize
	if cap(fsys.staging) < need {
		fsys.staging = make([]byte, need)
	}
	return fsys.staging[:need]
}

// stage reads nblk consecutive file blocks of inum starting at fbn into the
// staging region and returns it. Blocks that were never written read as zeros.
func (fsys *FS) stage(inum uint32, fbn int64, nblk int) ([]byte, error) {
	staging := fsys.stagingRegion(nblk)
	for i := 0; i < nblk; i++ {
		blk := staging[i*BlockSize : (i+1)*BlockSize]
		dbn, err := fsys.resolve(inum, fbn+int64(i))
		if err != nil {
			return nil, err
		}
		if dbn == 0 {
			clear(blk)
			continue
		}
		if err := fsys.readBlock(dbn, blk); err != nil {
			return nil, err
		}
	}
	return staging, nil
}

// Seek moves the cursor of fd according to whence, which is one of
// io.SeekStart, io.SeekCurrent or io.SeekEnd, and returns the new cursor.
// Negative offsets are rejected for every whence. Seeking past the end of
// the file is allowed and does not change its size.
func (fsys *FS) Seek(fd int, offset int64, whence int) (int64, error) {
	if err := fsys.validate(); err != nil {
		return 0, err
	}
	inum, curs, err := fsys.oft.entryFor(fd)
	if err != nil {
		return 0, err
	}
	if offset < 0 {
		return curs, ErrInvalidParameter
	}
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = curs + offset
	case io.SeekEnd:
		size, err := fsys.getSize(inum)
		if err != nil {
			return curs, err
		}
		next = size + offset
	default:
		return curs, ErrInvalidParameter
	}
	if next < 0 {
		return curs, ErrInvalidParameter // Overflow.
	}
	if err := fsys.oft.setCursor(fd, next); err != nil {
		return curs, err
	}
	return next, nil
}

// Tell returns the cursor of fd.
func (fsys *FS) Tell(fd int) (int64, error) {
	if err := fsys.validate(); err != nil {
		return 0, err
	}
	_, curs, err := fsys.oft.entryFor(fd)
	return curs, err
}

// Size returns the recorded size in bytes of the file open on fd.
func (fsys *FS) Size(fd int) (int64, error) {
	if err := fsys.validate(); err != nil {
		return 0, err
	}
	inum, _, err := fsys.oft.entryFor(fd)
	if err != nil {
		return 0, err
	}
	return fsys.getSize(inum)
}
