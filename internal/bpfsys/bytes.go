package bpfsys

import "unsafe"

// Bytes returns the memory backing *v as a byte slice.
//
// The slice aliases v: writes through it are writes to v, and its length is
// exactly unsafe.Sizeof(*v). T must be plain data. Pointers, slices, strings,
// maps, channels, funcs and interfaces inside T are copied as raw addresses
// that mean nothing to the kernel.
func Bytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), size)
}
