package syscallprog

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/features"

	"github.com/yairfalse/kcall/pkg/programs"
)

// Supported reports whether the running kernel can load syscall programs.
// It returns a programs.NotSupportedError when it cannot.
func Supported() error {
	if runtime.GOOS != "linux" {
		return programs.NotSupportedError{
			Feature:  "syscall programs",
			Platform: runtime.GOOS,
			Reason:   "eBPF is only supported on Linux",
		}
	}

	err := features.HaveProgramType(ebpf.Syscall)
	if errors.Is(err, ebpf.ErrNotSupported) {
		return programs.NotSupportedError{
			Feature:  "BPF_PROG_TYPE_SYSCALL",
			Platform: runtime.GOOS,
			Reason:   "requires Linux 5.14 or newer",
		}
	}
	if err != nil {
		return fmt.Errorf("failed to probe syscall program support: %w", err)
	}
	return nil
}
