//go:build unix

package jitlog

import "golang.org/x/sys/unix"

// fd is a raw descriptor. Writes go straight to the kernel, so nothing is
// lost if the process dies without a teardown.
type fd int

func (f fd) Write(p []byte) (int, error) { return unix.Write(int(f), p) }

func (f fd) Close() error { return unix.Close(int(f)) }

func openFile(path string) (descriptor, error) {
	n, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT, fileMode)
	if err != nil {
		return nil, err
	}
	return fd(n), nil
}

func fromFD(n int) descriptor { return fd(n) }
