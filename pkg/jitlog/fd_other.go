//go:build !unix

package jitlog

import "os"

func openFile(path string) (descriptor, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE, fileMode)
}

func fromFD(n int) descriptor { return os.NewFile(uintptr(n), "jitlog") }
