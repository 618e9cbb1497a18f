//go:build 386 || amd64p32 || arm || mipsle || mips64p32le

package bpfsys

import "unsafe"

// Pointer wraps an unsafe.Pointer to be 64bit to
// match the bpf(2) ABI.
type Pointer struct {
	ptr unsafe.Pointer
	pad uint32
}
