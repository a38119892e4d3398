//go:build windows

package segmentstore

import (
	"fmt"
	"os"
	"syscall"
)

const lockfileExclusiveLock = 0x2
const lockfileFailImmediately = 0x1

func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("segmentstore: open lock file: %w", err)
	}
	handle := syscall.Handle(f.Fd())
	var overlapped syscall.Overlapped
	err = syscall.LockFileEx(handle, lockfileExclusiveLock|lockfileFailImmediately, 0, 1, 0, &overlapped)
	if err != nil {
		f.Close()
		return nil, ErrLocked
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	handle := syscall.Handle(f.Fd())
	var overlapped syscall.Overlapped
	syscall.UnlockFileEx(handle, 0, 1, 0, &overlapped)
	f.Close()
}
