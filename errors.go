package bfs

import (
	"errors"
	"strconv"
)

// fileResult is the BFS function return code. Non-zero values implement error
// and are comparable with errors.Is after wrapping.
type fileResult int

const (
	frOK               fileResult = iota // succeeded
	frDiskErr                            // a hard error occurred in the low level disk I/O layer
	frIntErr                             // malformed on-disk or in-memory state
	frNotReady                           // the volume is not mounted or the device refuses access
	frNoFile                             // could not find the file
	frInvalidName                        // the file name format is invalid
	frDenied                             // access denied due to prohibited access
	frExist                              // the file already exists
	frInvalidObject                      // the file descriptor is invalid or closed
	frNoFilesystem                       // there is no valid BFS volume
	frLocked                             // the operation is rejected because the object is in use
	frTooManyOpenFiles                   // the open file table is full
	frInvalidParameter                   // given parameter is invalid
	frNoSpace                            // no free data block left
	frNoInode                            // no free inode left
	frDirFull                            // no free directory entry left
	frFileTooLarge                       // the write reaches past the largest mappable file block
	frNoDisk                             // the disk image does not exist
	frDiskCreate                         // the disk image could not be created
)

var frMessages = [...]string{
	frOK:               "ok",
	frDiskErr:          "disk I/O error",
	frIntErr:           "internal error",
	frNotReady:         "not ready",
	frNoFile:           "file not found",
	frInvalidName:      "invalid file name",
	frDenied:           "access denied",
	frExist:            "file exists",
	frInvalidObject:    "invalid file descriptor",
	frNoFilesystem:     "no valid filesystem",
	frLocked:           "resource in use",
	frTooManyOpenFiles: "too many open files",
	frInvalidParameter: "invalid argument",
	frNoSpace:          "no space left on device",
	frNoInode:          "no free inode",
	frDirFull:          "directory full",
	frFileTooLarge:     "file too large",
	frNoDisk:           "disk image not found",
	frDiskCreate:       "cannot create disk image",
}

func (fr fileResult) Error() string {
	if fr >= 0 && int(fr) < len(frMessages) {
		return "bfs: " + frMessages[fr]
	}
	return "bfs.fr:" + strconv.Itoa(int(fr))
}

// Errors returned by BFS operations. Callers should test with errors.Is since
// most are wrapped with operation context.
var (
	ErrDiskErr          error = frDiskErr
	ErrIntErr           error = frIntErr
	ErrNotReady         error = frNotReady
	ErrNotFound         error = frNoFile
	ErrInvalidName      error = frInvalidName
	ErrDenied           error = frDenied
	ErrExist            error = frExist
	ErrInvalidObject    error = frInvalidObject
	ErrNoFilesystem     error = frNoFilesystem
	ErrLocked           error = frLocked
	ErrTooManyOpenFiles error = frTooManyOpenFiles
	ErrInvalidParameter error = frInvalidParameter
	ErrNoSpace          error = frNoSpace
	ErrNoInode          error = frNoInode
	ErrDirFull          error = frDirFull
	ErrFileTooLarge     error = frFileTooLarge
	ErrNoDisk           error = frNoDisk
	ErrDiskCreate       error = frDiskCreate
)

var (
	errInvalidMode   = errors.New("invalid bfs access mode")
	errForbiddenMode = errors.New("forbidden bfs access mode")
)
