//go:build !windows

package hdwallet

import "golang.org/x/sys/unix"

// mlock attempts to keep data out of swap. It returns true on success.
func mlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return unix.Mlock(data) == nil
}

func munlock(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Munlock(data)
}
