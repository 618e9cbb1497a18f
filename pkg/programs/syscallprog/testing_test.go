package syscallprog

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
)

type myData struct {
	Value int32
}

// doublerSpec builds the program used throughout the tests: it doubles the
// int32 at the start of the context and returns 0.
func doublerSpec() *ebpf.ProgramSpec {
	return &ebpf.ProgramSpec{
		Name:    "my_syscall",
		Type:    ebpf.Syscall,
		License: "GPL",
		Instructions: asm.Instructions{
			asm.LoadMem(asm.R2, asm.R1, 0, asm.Word),
			asm.Add.Reg32(asm.R2, asm.R2),
			asm.StoreMem(asm.R1, 0, asm.R2, asm.Word),
			asm.Mov.Imm(asm.R0, 0),
			asm.Return(),
		},
	}
}

// constSpec builds a program that ignores its context and returns ret.
func constSpec(name string, ret int32) *ebpf.ProgramSpec {
	return &ebpf.ProgramSpec{
		Name:    name,
		Type:    ebpf.Syscall,
		License: "GPL",
		Instructions: asm.Instructions{
			asm.Mov.Imm(asm.R0, ret),
			asm.Return(),
		},
	}
}

// brokenSpec reads an uninitialized register, which every verifier rejects.
func brokenSpec() *ebpf.ProgramSpec {
	return &ebpf.ProgramSpec{
		Name:    "broken",
		Type:    ebpf.Syscall,
		License: "GPL",
		Instructions: asm.Instructions{
			asm.Mov.Reg(asm.R0, asm.R3),
			asm.Return(),
		},
	}
}
