// Package bpfsys is the raw memory bridge between Go values and the bpf(2)
// syscall used to run syscall programs.
//
// Everything here is unchecked: callers are responsible for passing buffers
// whose layout the loaded program expects.
package bpfsys

import (
	"errors"
	"fmt"
	"math"
)

// Cmd is a bpf(2) command.
type Cmd int

// BPF_PROG_TEST_RUN runs a loaded program once against caller supplied
// input. It is also known as BPF_PROG_RUN.
const BPF_PROG_TEST_RUN Cmd = 10

// ProgFlagSleepable is BPF_F_SLEEPABLE. The verifier refuses syscall programs
// that are loaded without it.
const ProgFlagSleepable = 1 << 4

// MaxContextSize is the largest ctx_size_in the kernel accepts for syscall
// programs.
const MaxContextSize = math.MaxUint16

// ErrContextTooLarge is returned for buffers the kernel would reject outright.
var ErrContextTooLarge = fmt.Errorf("context exceeds %d bytes", MaxContextSize)

// ErrNotSupported is returned on platforms without the bpf syscall.
var ErrNotSupported = errors.New("bpf syscall not supported on this platform")

// ProgRunAttr mirrors the test member of union bpf_attr.
type ProgRunAttr struct {
	ProgFd      uint32
	Retval      uint32
	DataSizeIn  uint32
	DataSizeOut uint32
	DataIn      Pointer
	DataOut     Pointer
	Repeat      uint32
	Duration    uint32
	CtxSizeIn   uint32
	CtxSizeOut  uint32
	CtxIn       Pointer
	CtxOut      Pointer
	Flags       uint32
	Cpu         uint32
	BatchSize   uint32
	_           [4]byte
}

// SyscallRunAttr builds the request for running a syscall program against
// buf. The kernel copies buf in, runs the program with ctx pointing at the
// copy and writes the copy back to ctx_in; data_in, data_out, ctx_out and
// repeat must stay zero for this program type.
func SyscallRunAttr(fd int, buf []byte) (*ProgRunAttr, error) {
	if len(buf) > MaxContextSize {
		return nil, ErrContextTooLarge
	}
	if fd < 0 || uint64(fd) > math.MaxUint32 {
		return nil, fmt.Errorf("invalid program fd %d", fd)
	}
	return &ProgRunAttr{
		ProgFd:    uint32(fd),
		CtxSizeIn: uint32(len(buf)),
		CtxIn:     NewSlicePointer(buf),
	}, nil
}

// Result returns the program's return value.
//
// The kernel reports a 32-bit value; it is sign extended so negative errno
// style returns keep their sign.
func (attr *ProgRunAttr) Result() int64 {
	return int64(int32(attr.Retval))
}
