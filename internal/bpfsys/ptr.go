package bpfsys

import "unsafe"

// NewPointer creates a 64-bit pointer from an unsafe Pointer.
func NewPointer(ptr unsafe.Pointer) Pointer {
	return Pointer{ptr: ptr}
}

// NewSlicePointer creates a 64-bit pointer to the first element of buf.
//
// An empty buf yields the zero Pointer, which the kernel reads as NULL.
func NewSlicePointer(buf []byte) Pointer {
	if len(buf) == 0 {
		return Pointer{}
	}
	return Pointer{ptr: unsafe.Pointer(unsafe.SliceData(buf))}
}

// IsNil reports whether p is the NULL pointer.
func (p Pointer) IsNil() bool {
	return p.ptr == nil
}
