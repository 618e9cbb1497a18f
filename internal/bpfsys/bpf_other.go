//go:build !linux

package bpfsys

import "unsafe"

// BPF always fails outside Linux.
func BPF(cmd Cmd, attr unsafe.Pointer, size uintptr) (uintptr, error) {
	return 0, ErrNotSupported
}

// ProgRun always fails outside Linux.
func ProgRun(attr *ProgRunAttr) error {
	return ErrNotSupported
}
