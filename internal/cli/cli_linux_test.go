//go:build linux

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/kcall/pkg/programs/syscallprog"
)

func TestSystemRunFromPin(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("Skipping eBPF test - requires root privileges")
	}
	if err := syscallprog.Supported(); err != nil {
		t.Skipf("Skipping eBPF test - %v", err)
	}

	p, err := syscallprog.New(&ebpf.ProgramSpec{
		Name:    "doubler",
		Type:    ebpf.Syscall,
		License: "GPL",
		Instructions: asm.Instructions{
			asm.LoadMem(asm.R2, asm.R1, 0, asm.Word),
			asm.Add.Reg32(asm.R2, asm.R2),
			asm.StoreMem(asm.R1, 0, asm.R2, asm.Word),
			asm.Mov.Imm(asm.R0, 0),
			asm.Return(),
		},
	})
	require.NoError(t, err)
	require.NoError(t, p.Load())
	defer p.Close()

	pin := filepath.Join("/sys/fs/bpf", "kcall-cli-test")
	if err := p.Pin(pin); err != nil {
		t.Skipf("Skipping eBPF test - bpffs unavailable: %v", err)
	}
	defer os.Remove(pin)

	out, err := execute(t, "run", "--from-pin", pin, "--field", "value:i32=21", "-o", "json")
	require.NoError(t, err)

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, int64(0), res.Retval)
	assert.Equal(t, "2a000000", res.Buffer)
	require.Len(t, res.Fields, 1)
	assert.EqualValues(t, 42, res.Fields[0].Value)

	out, err = execute(t, "bench", "--from-pin", pin, "--field", "value:i32=21", "--count", "50", "-o", "json")
	require.NoError(t, err)

	var bench benchResult
	require.NoError(t, json.Unmarshal([]byte(out), &bench))
	assert.Equal(t, 50, bench.Invocations)
	assert.Zero(t, bench.Errors)
	assert.LessOrEqual(t, bench.Min, bench.Max)
}
