package bfs

import (
	"bytes"
	"encoding/binary"
	"strconv"
)

const superblockMagic = "BFS1"

// Superblock field offsets.
const (
	sbMagicOff       = 0
	sbNumBlocksOff   = 4
	sbNumInodesOff   = 8
	sbInodeStartOff  = 12
	sbInodeBlocksOff = 16
	sbDirStartOff    = 20
	sbDirBlocksOff   = 24
	sbDataStartOff   = 28
)

// Inode record field offsets.
const (
	inoSizeOff     = 0
	inoFlagsOff    = 4
	inoDirectOff   = 8
	inoIndirectOff = inoDirectOff + numDirect*ptrSize

	inoFlagInUse = 1 << 0
)

// Directory entry field offsets.
const (
	dirNameOff = 0
	dirNameLen = MaxNameLen + 1
	dirInumOff = dirNameOff + dirNameLen
)

// superblock is block 0 of a BFS volume. It records the volume geometry.
type superblock struct {
	data []byte
}

// Magic returns the 4 byte filesystem signature, "BFS1" on a valid volume.
func (sb *superblock) Magic() [4]byte {
	var magic [4]byte
	copy(magic[:], sb.data[sbMagicOff:])
	return magic
}

func (sb *superblock) SetMagic() {
	copy(sb.data[sbMagicOff:sbMagicOff+4], superblockMagic)
}

// NumBlocks returns the total number of blocks of the volume, metadata included.
func (sb *superblock) NumBlocks() uint32 {
	return binary.LittleEndian.Uint32(sb.data[sbNumBlocksOff:])
}

func (sb *superblock) SetNumBlocks(n uint32) {
	binary.LittleEndian.PutUint32(sb.data[sbNumBlocksOff:], n)
}

// NumInodes returns the number of inode records in the inode table.
func (sb *superblock) NumInodes() uint32 {
	return binary.LittleEndian.Uint32(sb.data[sbNumInodesOff:])
}

func (sb *superblock) SetNumInodes(n uint32) {
	binary.LittleEndian.PutUint32(sb.data[sbNumInodesOff:], n)
}

// InodeRegion returns the first block and block count of the inode table.
func (sb *superblock) InodeRegion() (start, count uint32) {
	return binary.LittleEndian.Uint32(sb.data[sbInodeStartOff:]),
		binary.LittleEndian.Uint32(sb.data[sbInodeBlocksOff:])
}

func (sb *superblock) SetInodeRegion(start, count uint32) {
	binary.LittleEndian.PutUint32(sb.data[sbInodeStartOff:], start)
	binary.LittleEndian.PutUint32(sb.data[sbInodeBlocksOff:], count)
}

// DirRegion returns the first block and block count of the directory.
func (sb *superblock) DirRegion() (start, count uint32) {
	return binary.LittleEndian.Uint32(sb.data[sbDirStartOff:]),
		binary.LittleEndian.Uint32(sb.data[sbDirBlocksOff:])
}

func (sb *superblock) SetDirRegion(start, count uint32) {
	binary.LittleEndian.PutUint32(sb.data[sbDirStartOff:], start)
	binary.LittleEndian.PutUint32(sb.data[sbDirBlocksOff:], count)
}

// DataStart returns the first block of the data region.
func (sb *superblock) DataStart() uint32 {
	return binary.LittleEndian.Uint32(sb.data[sbDataStartOff:])
}

func (sb *superblock) SetDataStart(dbn uint32) {
	binary.LittleEndian.PutUint32(sb.data[sbDataStartOff:], dbn)
}

func (sb *superblock) geometry() geometry {
	g := geometry{
		numBlocks: sb.NumBlocks(),
		numInodes: sb.NumInodes(),
		dataStart: sb.DataStart(),
	}
	g.inodeStart, g.inodeBlocks = sb.InodeRegion()
	g.dirStart, g.dirBlocks = sb.DirRegion()
	return g
}

func (sb *superblock) setGeometry(g geometry) {
	sb.SetMagic()
	sb.SetNumBlocks(g.numBlocks)
	sb.SetNumInodes(g.numInodes)
	sb.SetInodeRegion(g.inodeStart, g.inodeBlocks)
	sb.SetDirRegion(g.dirStart, g.dirBlocks)
	sb.SetDataStart(g.dataStart)
}

// valid reports whether the geometry is self consistent.
func (g *geometry) valid() bool {
	return g.numInodes > 0 &&
		g.inodeStart == 1 &&
		g.inodeBlocks == ceilDiv(g.numInodes, inodesPerBlock) &&
		g.dirStart == g.inodeStart+g.inodeBlocks &&
		g.dirBlocks*direntsPerBlock >= g.numInodes &&
		g.dataStart == g.dirStart+g.dirBlocks &&
		g.numBlocks > g.dataStart
}

func (sb *superblock) String() string {
	return string(sb.Appendf(nil, '\n'))
}

func (sb *superblock) Appendf(dst []byte, separator byte) []byte {
	magic := sb.Magic()
	dst = labelAppend(dst, "Magic", clipname(magic[:]), separator)
	dst = labelAppendUint32("NumBlocks", dst, sb.NumBlocks(), separator)
	dst = labelAppendUint32("NumInodes", dst, sb.NumInodes(), separator)
	start, count := sb.InodeRegion()
	dst = labelAppendUint32("InodeStart", dst, start, separator)
	dst = labelAppendUint32("InodeBlocks", dst, count, separator)
	start, count = sb.DirRegion()
	dst = labelAppendUint32("DirStart", dst, start, separator)
	dst = labelAppendUint32("DirBlocks", dst, count, separator)
	dst = labelAppendUint32("DataStart", dst, sb.DataStart(), separator)
	return dst
}

// inodeRecord is a view of one 32 byte inode inside an inode table block.
type inodeRecord struct {
	data []byte
}

// inode is the decoded form of an inodeRecord.
type inode struct {
	size     uint32
	flags    uint32
	direct   [numDirect]uint32
	indirect uint32
}

func (ino *inode) inUse() bool { return ino.flags&inoFlagInUse != 0 }

func (rec *inodeRecord) decode() (ino inode) {
	ino.size = binary.LittleEndian.Uint32(rec.data[inoSizeOff:])
	ino.flags = binary.LittleEndian.Uint32(rec.data[inoFlagsOff:])
	for i := range ino.direct {
		ino.direct[i] = binary.LittleEndian.Uint32(rec.data[inoDirectOff+i*ptrSize:])
	}
	ino.indirect = binary.LittleEndian.Uint32(rec.data[inoIndirectOff:])
	return ino
}

func (rec *inodeRecord) encode(ino *inode) {
	binary.LittleEndian.PutUint32(rec.data[inoSizeOff:], ino.size)
	binary.LittleEndian.PutUint32(rec.data[inoFlagsOff:], ino.flags)
	for i, dbn := range ino.direct {
		binary.LittleEndian.PutUint32(rec.data[inoDirectOff+i*ptrSize:], dbn)
	}
	binary.LittleEndian.PutUint32(rec.data[inoIndirectOff:], ino.indirect)
}

// dirEntry is a view of one 32 byte entry inside a directory block.
type dirEntry struct {
	data []byte
}

// isFree reports whether the entry holds no file.
func (de *dirEntry) isFree() bool {
	return de.data[dirNameOff] == 0
}

// name returns the NUL padded file name.
func (de *dirEntry) name() string {
	return string(clipname(de.data[dirNameOff : dirNameOff+dirNameLen]))
}

func (de *dirEntry) inum() uint32 {
	return binary.LittleEndian.Uint32(de.data[dirInumOff:])
}

func (de *dirEntry) set(name string, inum uint32) {
	clear(de.data[dirNameOff : dirNameOff+dirNameLen])
	copy(de.data[dirNameOff:dirNameOff+MaxNameLen], name)
	binary.LittleEndian.PutUint32(de.data[dirInumOff:], inum)
}

func (de *dirEntry) clear() {
	clear(de.data[:direntSize])
}

// ptrBlock is an indirect block holding ptrsPerBlock block pointers.
type ptrBlock struct {
	data []byte
}

func (pb *ptrBlock) Entry(idx int) uint32 {
	return binary.LittleEndian.Uint32(pb.data[idx*ptrSize:])
}

func (pb *ptrBlock) SetEntry(idx int, dbn uint32) {
	binary.LittleEndian.PutUint32(pb.data[idx*ptrSize:], dbn)
}

// clipname cuts b at the first NUL byte. Spaces are part of the name.
func clipname(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return b
}

func labelAppend(dst []byte, label string, data []byte, sep byte) []byte {
	if len(data) == 0 {
		return dst
	}
	dst = append(dst, label...)
	dst = append(dst, ':')
	dst = append(dst, data...)
	dst = append(dst, sep)
	return dst
}

func labelAppendUint(label string, dst []byte, data uint64, sep byte) []byte {
	dst = append(dst, label...)
	dst = append(dst, ':')
	dst = strconv.AppendUint(dst, data, 10)
	dst = append(dst, sep)
	return dst
}

func labelAppendUint32(label string, dst []byte, data uint32, sep byte) []byte {
	return labelAppendUint(label, dst, uint64(data), sep)
}

// windowHandler caches one metadata block (superblock, inode table,
// directory or indirect block). Writes through it are flushed by sync.
type windowHandler struct {
	sect     uint32
	bd       BlockDevice
	modified bool
	win      [BlockSize]byte
}

func (wh *windowHandler) move(sector uint32) (fr fileResult) {
	if sector == wh.sect {
		return frOK // Do nothing if window offset not changed.
	}
	fr = wh.sync() // Flush window.
	if fr != frOK {
		return fr
	}
	_, err := wh.bd.ReadBlocks(wh.win[:], int64(sector))
	if err != nil {
		sector = badBlock // Invalidate window offset if disk error occured.
		fr = frDiskErr
	}
	wh.sect = sector
	return fr
}

func (wh *windowHandler) sync() (fr fileResult) {
	if !wh.modified {
		return frOK // Disk access window not dirty.
	}
	_, err := wh.bd.WriteBlocks(wh.win[:], int64(wh.sect))
	if err != nil {
		return frDiskErr
	}
	wh.modified = false
	return frOK
}

// invalidate drops the cached block without flushing it.
func (wh *windowHandler) invalidate() {
	wh.modified = false
	wh.sect = badBlock
}

func (wh *windowHandler) flagAsModified() { wh.modified = true }

// commit flags the window as modified and writes it through to the device.
func (wh *windowHandler) commit() fileResult {
	wh.flagAsModified()
	return wh.sync()
}
