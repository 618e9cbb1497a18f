// Package syscallctx is the kernel-side half of a syscall program.
//
// Generated entry points receive the context pointer from the kernel and wrap
// it in a Context before calling the user function. The pointer addresses the
// kernel's copy of the buffer passed to BPF_PROG_TEST_RUN and is only valid for
// the duration of that single call.
//
// The package has no dependencies so it compiles under TinyGo's BPF target as
// well as the regular toolchain.
package syscallctx

import "unsafe"

// Context wraps the opaque pointer handed to a syscall program.
//
// It does not own the memory behind the pointer and performs no validation.
// Code that reinterprets AsPointer must know the layout and size the caller
// passed on the host side. A Context must not outlive the entry point call it
// was created for.
type Context struct {
	ctx unsafe.Pointer
}

// New wraps ctx.
func New(ctx unsafe.Pointer) Context {
	return Context{ctx: ctx}
}

// AsPointer returns the raw context pointer.
func (c Context) AsPointer() unsafe.Pointer {
	return c.ctx
}
