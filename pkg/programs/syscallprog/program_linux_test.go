//go:build linux

package syscallprog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yairfalse/kcall/pkg/programs"
)

func requireSyscallPrograms(t *testing.T) {
	t.Helper()

	if os.Geteuid() != 0 {
		t.Skip("Skipping eBPF test - requires root privileges")
	}
	if err := Supported(); err != nil {
		t.Skipf("Skipping eBPF test - %v", err)
	}
}

func loadProgram(t *testing.T, spec *ebpf.ProgramSpec) *Program {
	t.Helper()

	p, err := New(spec, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, p.Load())
	t.Cleanup(func() { assert.NoError(t, p.Close()) })
	return p
}

func TestSystemInvokeDoublesValue(t *testing.T) {
	requireSyscallPrograms(t)
	p := loadProgram(t, doublerSpec())

	data := myData{Value: 21}
	ret, err := InvokeUnchecked(context.Background(), p, &data)
	require.NoError(t, err)

	assert.Equal(t, int64(0), ret)
	assert.Equal(t, int32(42), data.Value)
}

func TestSystemInvocationsAreIndependent(t *testing.T) {
	requireSyscallPrograms(t)
	p := loadProgram(t, doublerSpec())

	first := myData{Value: 21}
	second := myData{Value: 21}

	_, err := InvokeUnchecked(context.Background(), p, &first)
	require.NoError(t, err)
	_, err = InvokeUnchecked(context.Background(), p, &second)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Invoking the same value again runs the body once more on its new contents.
	_, err = InvokeUnchecked(context.Background(), p, &first)
	require.NoError(t, err)
	assert.Equal(t, int32(84), first.Value)
}

func TestSystemInvokeBytes(t *testing.T) {
	requireSyscallPrograms(t)
	p := loadProgram(t, doublerSpec())

	buf := []byte{3, 0, 0, 0, 0xaa, 0xbb}
	ret, err := p.InvokeBytes(context.Background(), buf)
	require.NoError(t, err)

	assert.Zero(t, ret)
	assert.Equal(t, []byte{6, 0, 0, 0, 0xaa, 0xbb}, buf)
}

func TestSystemReturnValue(t *testing.T) {
	requireSyscallPrograms(t)

	tests := []struct {
		name string
		ret  int32
	}{
		{"zero", 0},
		{"positive", 7},
		{"negative", -22},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := loadProgram(t, constSpec("ret_"+tt.name, tt.ret))

			data := myData{Value: 5}
			ret, err := InvokeUnchecked(context.Background(), p, &data)
			require.NoError(t, err)

			assert.Equal(t, int64(tt.ret), ret)
			assert.Equal(t, int32(5), data.Value)
		})
	}
}

func TestSystemLoadRejected(t *testing.T) {
	requireSyscallPrograms(t)

	p, err := New(brokenSpec(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	err = p.Load()
	var loadErr programs.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "broken", loadErr.Program)

	var ve *ebpf.VerifierError
	assert.True(t, errors.As(err, &ve))

	assert.False(t, p.Loaded())
	data := myData{Value: 21}
	_, err = InvokeUnchecked(context.Background(), p, &data)
	assert.ErrorIs(t, err, programs.ErrNotLoaded)
}

func TestSystemLoadTwice(t *testing.T) {
	requireSyscallPrograms(t)
	p := loadProgram(t, doublerSpec())

	assert.ErrorIs(t, p.Load(), programs.ErrAlreadyLoaded)
	assert.True(t, p.Loaded())
}

func TestSystemBufferTooSmall(t *testing.T) {
	requireSyscallPrograms(t)
	p := loadProgram(t, doublerSpec())

	// The program reads four bytes; the kernel refuses shorter contexts.
	_, err := p.InvokeBytes(context.Background(), []byte{1})

	var invErr programs.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "my_syscall", invErr.Program)
}

func TestSystemCloseUnloads(t *testing.T) {
	requireSyscallPrograms(t)

	p, err := New(doublerSpec())
	require.NoError(t, err)
	require.NoError(t, p.Load())
	require.NoError(t, p.Close())

	data := myData{Value: 21}
	_, err = InvokeUnchecked(context.Background(), p, &data)
	assert.ErrorIs(t, err, programs.ErrNotLoaded)

	// A closed program can be loaded again from its spec.
	require.NoError(t, p.Load())
	defer p.Close()
	_, err = InvokeUnchecked(context.Background(), p, &data)
	require.NoError(t, err)
	assert.Equal(t, int32(42), data.Value)
}

func TestSystemAttachDetach(t *testing.T) {
	requireSyscallPrograms(t)
	p := loadProgram(t, doublerSpec())

	id, err := p.Attach()
	require.NoError(t, err)
	assert.Equal(t, LinkID{}, id)

	_, err = p.Attach()
	assert.ErrorIs(t, err, programs.ErrAlreadyAttached)

	require.NoError(t, p.Detach(id))
	assert.ErrorIs(t, p.Detach(id), programs.ErrNotAttached)

	// Detaching does not unload.
	data := myData{Value: 1}
	_, err = InvokeUnchecked(context.Background(), p, &data)
	require.NoError(t, err)
	assert.Equal(t, int32(2), data.Value)
}

func TestSystemConcurrentInvoke(t *testing.T) {
	requireSyscallPrograms(t)
	p := loadProgram(t, doublerSpec())

	const workers = 8
	var wg sync.WaitGroup
	results := make([]myData, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = myData{Value: int32(i)}
			_, errs[i] = InvokeUnchecked(context.Background(), p, &results[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, int32(2*i), results[i].Value)
	}
}

func TestSystemPinAndReopen(t *testing.T) {
	requireSyscallPrograms(t)

	if _, err := os.Stat("/sys/fs/bpf"); err != nil {
		t.Skip("Skipping pin test - bpffs not mounted")
	}
	dir, err := os.MkdirTemp("/sys/fs/bpf", "kcall-test-")
	if err != nil {
		t.Skipf("Skipping pin test - %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	p := loadProgram(t, doublerSpec())
	path := filepath.Join(dir, "my_syscall")
	require.NoError(t, p.Pin(path))

	pinned, err := FromPinned(path)
	require.NoError(t, err)
	defer pinned.Close()

	assert.True(t, pinned.Loaded())
	assert.ErrorIs(t, pinned.Load(), programs.ErrAlreadyLoaded)

	data := myData{Value: 10}
	_, err = InvokeUnchecked(context.Background(), pinned, &data)
	require.NoError(t, err)
	assert.Equal(t, int32(20), data.Value)
}

func TestSystemInfo(t *testing.T) {
	requireSyscallPrograms(t)
	p := loadProgram(t, doublerSpec())

	info, err := p.Info()
	require.NoError(t, err)
	assert.Equal(t, ebpf.Syscall, info.Type)

	fd, err := p.FD()
	require.NoError(t, err)
	assert.Greater(t, fd, 0)
}
