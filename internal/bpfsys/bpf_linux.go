//go:build linux

package bpfsys

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BPF wraps SYS_BPF.
//
// Any pointers contained in attr must use the Pointer type from this package.
// The returned error is a unix.Errno.
func BPF(cmd Cmd, attr unsafe.Pointer, size uintptr) (uintptr, error) {
	r1, _, errNo := unix.Syscall(unix.SYS_BPF, uintptr(cmd), uintptr(attr), size)
	runtime.KeepAlive(attr)

	if errNo != 0 {
		return r1, errNo
	}
	return r1, nil
}

// ProgRun issues BPF_PROG_TEST_RUN. The kernel updates attr in place.
//
// The call blocks until the program returns and is never retried, EINTR
// included.
func ProgRun(attr *ProgRunAttr) error {
	_, err := BPF(BPF_PROG_TEST_RUN, unsafe.Pointer(attr), unsafe.Sizeof(*attr))
	return err
}
