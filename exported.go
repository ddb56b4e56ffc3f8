package bfs

import (
	"errors"
	"io"
	"log/slog"
)

// Mode represents the access mode used in Mount and OpenFile.
type Mode uint8

// Access modes for calling Mount and OpenFile.
const (
	ModeRead  Mode = 1 << 0
	ModeWrite Mode = 1 << 1
	ModeRW    Mode = ModeRead | ModeWrite

	// ModeOpenExisting opens an existing file. It is the zero value.
	ModeOpenExisting Mode = 0
	// ModeCreateNew creates a file and fails with ErrExist if it already exists.
	ModeCreateNew Mode = 1 << 2
	// ModeCreateAlways creates a file, truncating any existing file of the same name.
	ModeCreateAlways Mode = 1 << 3
	// ModeOpenAppend opens an existing file with the cursor at its end.
	ModeOpenAppend Mode = 1 << 4

	allowedModes = ModeRead | ModeWrite | ModeCreateNew | ModeCreateAlways | ModeOpenAppend
)

// Mount mounts the BFS volume on the given block device. Mode should be
// ModeRead, ModeWrite, or both. Mounting closes every descriptor of a
// previous mount.
func (fsys *FS) Mount(bd BlockDevice, mode Mode) error {
	if mode&^ModeRW != 0 || mode == 0 {
		return errInvalidMode
	}
	fsys.device = nil // Invalidate any previous mount.
	fsys.oft.reset()
	devMode := bd.Mode()
	if devMode == 0 {
		return ErrNotReady
	} else if mode&devMode != mode {
		return ErrDenied
	}
	fsys.blk, _ = makeBlockIndexer(BlockSize)
	fsys.win = windowHandler{bd: bd, sect: badBlock}
	if fr := fsys.win.move(0); fr != frOK {
		return fr
	}
	sb := superblock{data: fsys.win.win[:]}
	if magic := sb.Magic(); string(magic[:]) != superblockMagic {
		fsys.logerror("mount:bad magic")
		return ErrNoFilesystem
	}
	geo := sb.geometry()
	if !geo.valid() {
		fsys.logerror("mount:bad geometry", slog.String("superblock", sb.String()))
		return ErrNoFilesystem
	}
	if sz, ok := bd.(sizer); ok && sz.Size() < int64(geo.numBlocks)*BlockSize {
		fsys.logerror("mount:device smaller than volume", slog.Int64("size", sz.Size()))
		return ErrNoFilesystem
	}
	fsys.geo = geo
	fsys.perm = mode
	fsys.device = bd
	if err := fsys.rebuildFreeList(); err != nil {
		fsys.device = nil
		return err
	}
	fsys.info("mounted", slog.Uint64("blocks", uint64(geo.numBlocks)),
		slog.Uint64("inodes", uint64(geo.numInodes)), slog.Uint64("free", fsys.free.count()))
	return nil
}

// Unmount flushes pending metadata and detaches the device. Every
// descriptor is closed.
func (fsys *FS) Unmount() error {
	if err := fsys.validate(); err != nil {
		return err
	}
	fr := fsys.win.sync()
	fsys.oft.reset()
	fsys.device = nil
	if fr != frOK {
		return fr
	}
	return nil
}

// Create creates the file called name, truncating it if it already exists,
// and returns a descriptor with its cursor at 0.
func (fsys *FS) Create(name string) (int, error) {
	if err := fsys.validate(); err != nil {
		return -1, err
	}
	if fsys.perm&ModeWrite == 0 {
		return -1, ErrDenied
	}
	inum, err := fsys.createOrTruncate(name)
	if err != nil {
		return -1, err
	}
	return fsys.oft.newEntry(inum)
}

// Open opens the existing file called name and returns a descriptor with
// its cursor at 0. It returns ErrNotFound if there is no such file.
func (fsys *FS) Open(name string) (int, error) {
	if err := fsys.validate(); err != nil {
		return -1, err
	}
	inum, err := fsys.lookup(name)
	if err != nil {
		return -1, err
	}
	return fsys.oft.newEntry(inum)
}

// Close releases fd. The file and its data are not affected. Closing a
// descriptor that is not open returns ErrInvalidObject.
func (fsys *FS) Close(fd int) error {
	if err := fsys.validate(); err != nil {
		return err
	}
	return fsys.oft.release(fd)
}

// Remove deletes the file called name and frees its blocks. It returns
// ErrLocked if the file is open.
func (fsys *FS) Remove(name string) error {
	if err := fsys.validate(); err != nil {
		return err
	}
	if fsys.perm&ModeWrite == 0 {
		return ErrDenied
	}
	return fsys.unlink(name)
}

// FileInfo describes a file.
type FileInfo struct {
	name   string
	inum   uint32
	size   int64
	blocks int
}

// Name returns the name of the file.
func (finfo *FileInfo) Name() string { return finfo.name }

// Size returns the size of the file in bytes.
func (finfo *FileInfo) Size() int64 { return finfo.size }

// Inode returns the inode number of the file.
func (finfo *FileInfo) Inode() uint32 { return finfo.inum }

// Blocks returns the number of data blocks mapped by the file.
func (finfo *FileInfo) Blocks() int { return finfo.blocks }

func (fsys *FS) fileInfo(name string, inum uint32) (FileInfo, error) {
	size, err := fsys.getSize(inum)
	if err != nil {
		return FileInfo{}, err
	}
	blocks, err := fsys.blockCount(inum)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{name: name, inum: inum, size: size, blocks: blocks}, nil
}

// Stat returns information about the file called name.
func (fsys *FS) Stat(name string) (FileInfo, error) {
	if err := fsys.validate(); err != nil {
		return FileInfo{}, err
	}
	clean, err := cleanName(name)
	if err != nil {
		return FileInfo{}, err
	}
	_, inum, err := fsys.findEntry(clean)
	if err != nil {
		return FileInfo{}, err
	}
	return fsys.fileInfo(clean, inum)
}

// ForEachFile calls the callback function for each file on the volume.
func (fsys *FS) ForEachFile(callback func(*FileInfo) error) error {
	if err := fsys.validate(); err != nil {
		return err
	}
	return fsys.forEachEntry(func(name string, inum uint32) error {
		finfo, err := fsys.fileInfo(name, inum)
		if err != nil {
			return err
		}
		return callback(&finfo)
	})
}

// FreeBlocks returns the number of unallocated data blocks, or 0 if the
// volume is not mounted.
func (fsys *FS) FreeBlocks() int64 {
	if fsys.validate() != nil {
		return 0
	}
	return int64(fsys.free.count())
}

// Superblock returns a human readable description of the volume geometry.
func (fsys *FS) Superblock() string {
	var sb superblock
	sb.data = make([]byte, BlockSize)
	sb.setGeometry(fsys.geo)
	return sb.String()
}

// File is an open BFS file. It implements io.Reader, io.Writer, io.Seeker
// and io.Closer on top of the descriptor API.
type File struct {
	fsys *FS
	fd   int
	name string
	mode Mode
}

// OpenFile opens the named file for reading or writing, depending on the mode.
func (fsys *FS) OpenFile(name string, mode Mode) (*File, error) {
	if err := fsys.validate(); err != nil {
		return nil, err
	}
	prohibited := (mode & ModeRW) &^ fsys.perm
	if mode&^allowedModes != 0 || mode&(ModeCreateNew|ModeCreateAlways) == ModeCreateNew|ModeCreateAlways {
		return nil, errInvalidMode
	} else if prohibited != 0 {
		return nil, errForbiddenMode
	}
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	var fd int
	switch {
	case mode&ModeCreateAlways != 0:
		fd, err = fsys.Create(clean)
	case mode&ModeCreateNew != 0:
		if _, err = fsys.lookup(clean); err == nil {
			return nil, ErrExist
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		fd, err = fsys.Create(clean)
	default:
		fd, err = fsys.Open(clean)
	}
	if err != nil {
		return nil, err
	}
	if mode&ModeOpenAppend != 0 {
		if _, err := fsys.Seek(fd, 0, io.SeekEnd); err != nil {
			fsys.Close(fd)
			return nil, err
		}
	}
	return &File{fsys: fsys, fd: fd, name: clean, mode: mode}, nil
}

// Read reads up to len(buf) bytes from the File. It implements the [io.Reader] interface.
func (fp *File) Read(buf []byte) (int, error) {
	if fp.mode&ModeRead == 0 {
		return 0, errForbiddenMode
	}
	n, err := fp.fsys.Read(fp.fd, buf)
	if err != nil {
		return n, err
	} else if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes len(buf) bytes to the File. It implements the [io.Writer] interface.
func (fp *File) Write(buf []byte) (int, error) {
	if fp.mode&ModeWrite == 0 {
		return 0, errForbiddenMode
	}
	return fp.fsys.Write(fp.fd, buf)
}

// Seek implements the [io.Seeker] interface. Unlike most seekers it rejects
// negative offsets for every whence.
func (fp *File) Seek(offset int64, whence int) (int64, error) {
	return fp.fsys.Seek(fp.fd, offset, whence)
}

// Close closes the file. It implements the [io.Closer] interface.
func (fp *File) Close() error {
	return fp.fsys.Close(fp.fd)
}

// Name returns the normalized name the file was opened with.
func (fp *File) Name() string { return fp.name }

// Size returns the current size of the file in bytes.
func (fp *File) Size() (int64, error) {
	return fp.fsys.Size(fp.fd)
}

// Mode returns the lowest 2 bits of the file's permission (read, write or both).
func (fp *File) Mode() Mode {
	return fp.mode & ModeRW
}
