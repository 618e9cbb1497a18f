package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type benchResult struct {
	Program     string        `json:"program"`
	Invocations int           `json:"invocations"`
	Errors      int           `json:"errors"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Min         time.Duration `json:"min_ns"`
	Mean        time.Duration `json:"mean_ns"`
	P50         time.Duration `json:"p50_ns"`
	P99         time.Duration `json:"p99_ns"`
	Max         time.Duration `json:"max_ns"`
	LastRetval  int64         `json:"last_retval"`
}

func (a *app) benchCmd() *cobra.Command {
	var (
		prog   programFlags
		buffer bufferFlags
		count  int
		perSec float64
	)

	cmd := &cobra.Command{
		Use:   "bench <object> <program>",
		Short: "Invoke a syscall program repeatedly and report latency",
		Long: `Invoke a syscall program repeatedly and report latency.

Every invocation starts from a fresh copy of the initial buffer.`,
		Example: `  # 10000 invocations as fast as possible
  kcall bench doubler.o mySyscall --field i32=21 --count 10000

  # 100 invocations per second
  kcall bench doubler.o mySyscall --field i32=21 --count 500 --rate 100`,
		Args: prog.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			if perSec < 0 {
				return fmt.Errorf("--rate must not be negative, got %g", perSec)
			}

			initial, _, err := buffer.build()
			if err != nil {
				return err
			}

			p, err := a.openProgram(&prog, args)
			if err != nil {
				return err
			}
			defer p.Close()

			limit := rate.Inf
			if perSec > 0 {
				limit = rate.Limit(perSec)
			}
			limiter := rate.NewLimiter(limit, 1)

			ctx := cmd.Context()
			buf := make([]byte, len(initial))
			latencies := make([]time.Duration, 0, count)
			res := benchResult{Program: p.Name()}
			var firstErr error

			start := time.Now()
			for i := 0; i < count; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}

				copy(buf, initial)
				t := time.Now()
				ret, err := p.InvokeBytes(ctx, buf)
				latencies = append(latencies, time.Since(t))

				res.Invocations++
				if err != nil {
					res.Errors++
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				res.LastRetval = ret
			}
			res.Elapsed = time.Since(start)
			summarize(&res, latencies)

			a.logger.Debug("Benchmark finished",
				zap.Int("invocations", res.Invocations),
				zap.Int("errors", res.Errors),
				zap.Duration("elapsed", res.Elapsed))

			if err := a.write(cmd.OutOrStdout(), res, func(w io.Writer) {
				printBenchResult(w, res)
			}); err != nil {
				return err
			}
			if firstErr != nil {
				return errors.Join(fmt.Errorf("%d of %d invocations failed", res.Errors, res.Invocations), firstErr)
			}
			return nil
		},
	}

	prog.register(cmd)
	buffer.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 1000, "number of invocations")
	cmd.Flags().Float64Var(&perSec, "rate", 0, "invocations per second, 0 for unlimited")
	return cmd
}

func summarize(res *benchResult, latencies []time.Duration) {
	if len(latencies) == 0 {
		return
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	res.Min = sorted[0]
	res.Max = sorted[len(sorted)-1]
	res.Mean = total / time.Duration(len(sorted))
	res.P50 = percentile(sorted, 50)
	res.P99 = percentile(sorted, 99)
}

// percentile returns the nearest-rank percentile of sorted.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func printBenchResult(w io.Writer, res benchResult) {
	fmt.Fprintf(w, "program:     %s\n", res.Program)
	fmt.Fprintf(w, "invocations: %d (%d errors) in %s\n", res.Invocations, res.Errors, res.Elapsed)
	fmt.Fprintf(w, "latency:     min %s  mean %s  p50 %s  p99 %s  max %s\n", res.Min, res.Mean, res.P50, res.P99, res.Max)
	fmt.Fprintf(w, "last retval: %d\n", res.LastRetval)
}
