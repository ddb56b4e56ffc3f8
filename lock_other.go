//go:build !unix

package bfs

import "os"

// Advisory image locking is only implemented on unix.

func lockFile(f *os.File, exclusive bool) error { return nil }

func unlockFile(f *os.File) error { return nil }
