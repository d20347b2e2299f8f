// Package evolve runs the orbit integrator over an ensemble, serially or
// on a bounded worker pool, and gathers the outcomes in input order.
package evolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/kicksim/internal/metrics"
	"github.com/san-kum/kicksim/internal/orbit"
)

// AllCores as Driver.Workers uses one worker per CPU.
const AllCores = -1

var ErrNotDispatched = errors.New("evolve: system not dispatched before cancellation")

// Result is the outcome of one system. A failed system carries its error
// and NaN numeric columns.
type Result struct {
	Index   int
	Outcome orbit.Outcome
	Err     error

	traj    string
	started bool
}

func (r Result) Failed() bool { return r.Err != nil }

// Driver evolves an ensemble. Workers is 0 for serial execution in the
// caller's goroutine, N for N workers, or AllCores.
type Driver struct {
	Workers int
	Seed    int64
	Logger  *slog.Logger
	Metrics *metrics.Run

	// TrajectoryDir receives the consolidated trajectory file when the
	// integrator records trajectories. When empty they stay in memory on
	// each outcome.
	TrajectoryDir string

	// Progress is called after every finished system. It must be safe for
	// concurrent use.
	Progress func(done, total int)
}

func (d *Driver) workers() int {
	if d.Workers < 0 {
		return runtime.NumCPU()
	}
	return d.Workers
}

// Run evolves every input. Per-system failures are recorded on the result
// and never abort the run; the returned error reports cancellation or a
// failure to consolidate trajectories.
func (d *Driver) Run(ctx context.Context, integ *orbit.Integrator, inputs []orbit.Input) ([]Result, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "evolve"))

	var tmp string
	if integ.Config().Trajectory && d.TrajectoryDir != "" {
		if err := os.MkdirAll(d.TrajectoryDir, 0o755); err != nil {
			return nil, err
		}
		dir, err := os.MkdirTemp(d.TrajectoryDir, "trajectories-")
		if err != nil {
			return nil, fmt.Errorf("create trajectory scratch dir: %w", err)
		}
		tmp = dir
		defer os.RemoveAll(tmp)
	}

	workers := d.workers()
	if d.Metrics != nil {
		d.Metrics.SetWorkers(workers)
	}
	logger.Info("evolving ensemble", "systems", len(inputs), "workers", workers, "integrator", integ.Config().Integrator)

	total := len(inputs)
	results := make([]Result, total)
	var done atomic.Int64
	task := func(i int) {
		results[i] = d.runOne(ctx, logger, integ, inputs[i], tmp)
		n := done.Add(1)
		if d.Progress != nil {
			d.Progress(int(n), total)
		}
	}

	if workers == 0 {
		for i := range inputs {
			if ctx.Err() != nil {
				break
			}
			task(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i := range inputs {
			if ctx.Err() != nil {
				break
			}
			i := i
			g.Go(func() error {
				task(i)
				return nil
			})
		}
		g.Wait()
	}

	for i := range results {
		if !results[i].started {
			results[i] = failed(inputs[i].Index, orbit.Outcome{}, ErrNotDispatched)
		}
	}

	if tmp != "" {
		if err := consolidate(results, filepath.Join(d.TrajectoryDir, TrajectoryFile)); err != nil {
			return results, err
		}
	}
	return results, ctx.Err()
}

func (d *Driver) runOne(ctx context.Context, logger *slog.Logger, integ *orbit.Integrator, in orbit.Input, tmp string) Result {
	rng := rand.New(rand.NewSource(d.Seed + int64(in.Index)))

	var fs *fileSink
	var sink orbit.TrajectorySink
	if tmp != "" && in.Survive {
		var err error
		fs, err = createFileSink(filepath.Join(tmp, fmt.Sprintf("traj-%d.csv", in.Index)))
		if err != nil {
			return d.fail(logger, in.Index, orbit.Outcome{}, err)
		}
		sink = fs
	}

	out, err := integ.Run(ctx, in, rng, sink)
	if fs != nil {
		if cerr := fs.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(fs.path)
		}
	}
	if err != nil {
		return d.fail(logger, in.Index, out, err)
	}

	logger.Debug("system evolved",
		"tracer", in.Index,
		"outcome", out.State.String(),
		"merger_z", out.MergerRedshift,
		"wall", out.Wall,
	)
	if d.Metrics != nil {
		d.Metrics.ObserveSystem(out.State.String(), out.Wall, out.Segments)
	}
	res := Result{Index: in.Index, Outcome: out, started: true}
	if fs != nil {
		res.traj = fs.path
	}
	return res
}

func (d *Driver) fail(logger *slog.Logger, idx int, partial orbit.Outcome, err error) Result {
	logger.Warn("system failed", "tracer", idx, "error", err)
	if d.Metrics != nil {
		d.Metrics.ObserveFailure()
	}
	return failed(idx, partial, err)
}

func failed(idx int, partial orbit.Outcome, err error) Result {
	n := math.NaN()
	return Result{
		Index: idx,
		Outcome: orbit.Outcome{
			State:          partial.State,
			Final:          orbit.Phase{X: n, Y: n, Z: n, VX: n, VY: n, VZ: n},
			ROffset:        n,
			RProjOffset:    n,
			MergerRedshift: n,
			Elapsed:        partial.Elapsed,
			Segments:       partial.Segments,
			EnergyDrift:    n,
			MaxOffset:      n,
		},
		Err:     err,
		started: true,
	}
}
