//go:build armbe || mips || mips64p32

package bpfsys

import "unsafe"

// Pointer wraps an unsafe.Pointer to be 64bit to
// match the bpf(2) ABI.
type Pointer struct {
	pad uint32
	ptr unsafe.Pointer
}
