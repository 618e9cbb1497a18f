// Package syscallprog loads BPF_PROG_TYPE_SYSCALL programs and runs them
// synchronously from user space.
//
// A syscall program is invokable as soon as it is loaded. Each invocation
// hands the kernel one buffer; the kernel copies it in, runs the program with
// the context pointing at the copy and copies the result back before the call
// returns.
//
// Example usage:
//
//	type myData struct {
//	    Value int32
//	}
//
//	prog, err := syscallprog.FromCollectionSpec(spec, "my_syscall")
//	if err != nil {
//	    return err
//	}
//	defer prog.Close()
//
//	if err := prog.Load(); err != nil {
//	    return err
//	}
//
//	data := myData{Value: 21}
//	ret, err := syscallprog.InvokeUnchecked(ctx, prog, &data)
//	// data.Value == 42, ret == 0
//
// Syscall programs need Linux 5.14 or newer and CAP_BPF.
package syscallprog
