package syscallprog

import (
	"context"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/yairfalse/kcall/pkg/programs"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    *ebpf.ProgramSpec
		wantErr bool
	}{
		{name: "nil_spec", spec: nil, wantErr: true},
		{name: "no_name", spec: &ebpf.ProgramSpec{Type: ebpf.Syscall}, wantErr: true},
		{name: "wrong_type", spec: &ebpf.ProgramSpec{Name: "xdp_prog", Type: ebpf.XDP}, wantErr: true},
		{name: "syscall", spec: doublerSpec(), wantErr: false},
		{name: "unspecified_type", spec: &ebpf.ProgramSpec{Name: "untyped"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.spec, WithLogger(zaptest.NewLogger(t)))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.spec.Name, p.Name())
			assert.False(t, p.Loaded())
		})
	}
}

func TestNewCopiesSpec(t *testing.T) {
	spec := doublerSpec()
	p, err := New(spec)
	require.NoError(t, err)

	spec.Instructions = nil
	assert.Len(t, p.spec.Instructions, 5)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(doublerSpec(), WithConfig(Config{
		DisableVerifierLog: true,
		VerifierLogLevel:   ebpf.LogLevelBranch,
	}))
	assert.Error(t, err)
}

func TestFromCollectionSpec(t *testing.T) {
	cs := &ebpf.CollectionSpec{
		Programs: map[string]*ebpf.ProgramSpec{
			"my_syscall": doublerSpec(),
			"xdp_pass":   {Name: "xdp_pass", Type: ebpf.XDP},
		},
	}

	p, err := FromCollectionSpec(cs, "my_syscall")
	require.NoError(t, err)
	assert.Equal(t, "my_syscall", p.Name())

	_, err = FromCollectionSpec(cs, "missing")
	assert.Error(t, err)

	_, err = FromCollectionSpec(cs, "xdp_pass")
	assert.Error(t, err)

	_, err = FromCollectionSpec(nil, "my_syscall")
	assert.Error(t, err)
}

func TestInvokeBeforeLoad(t *testing.T) {
	p, err := New(doublerSpec(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	data := myData{Value: 21}
	for i := 0; i < 2; i++ {
		ret, err := InvokeUnchecked(context.Background(), p, &data)
		assert.ErrorIs(t, err, programs.ErrNotLoaded)
		assert.Zero(t, ret)
	}
	assert.Equal(t, int32(21), data.Value)

	_, err = p.InvokeBytes(context.Background(), []byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, programs.ErrNotLoaded)
}

func TestInvokeNilValue(t *testing.T) {
	p, err := New(doublerSpec())
	require.NoError(t, err)

	_, err = InvokeUnchecked[myData](context.Background(), p, nil)

	var invErr programs.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "my_syscall", invErr.Program)
}

func TestUnloadedAccessors(t *testing.T) {
	p, err := New(doublerSpec())
	require.NoError(t, err)

	fd, err := p.FD()
	assert.ErrorIs(t, err, programs.ErrNotLoaded)
	assert.Equal(t, -1, fd)

	_, err = p.Info()
	assert.ErrorIs(t, err, programs.ErrNotLoaded)

	assert.ErrorIs(t, p.Pin("/sys/fs/bpf/never"), programs.ErrNotLoaded)

	_, err = p.Attach()
	assert.ErrorIs(t, err, programs.ErrNotLoaded)

	assert.ErrorIs(t, p.Detach(LinkID{}), programs.ErrNotAttached)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestInvokeRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	p, err := New(doublerSpec(), WithMeterProvider(mp))
	require.NoError(t, err)

	data := myData{Value: 1}
	_, err = InvokeUnchecked(context.Background(), p, &data)
	require.Error(t, err)
	_, err = InvokeUnchecked(context.Background(), p, &data)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(2), counterValue(t, rm, MetricInvocations))
	assert.Equal(t, int64(2), counterValue(t, rm, MetricInvocationErrors))
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "default", config: DefaultConfig()},
		{name: "branch_and_stats", config: Config{VerifierLogLevel: ebpf.LogLevelBranch | ebpf.LogLevelStats}},
		{name: "unknown_bits", config: Config{VerifierLogLevel: 1 << 10}, wantErr: true},
		{name: "disabled_with_level", config: Config{DisableVerifierLog: true, VerifierLogLevel: ebpf.LogLevelInstruction}, wantErr: true},
		{name: "disabled", config: Config{DisableVerifierLog: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
