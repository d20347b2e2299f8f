// Package orbit integrates a single tracer system through the epoch-indexed
// galactic potential until it merges, runs out of epochs or exceeds its
// wall-clock budget.
package orbit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/kicksim/internal/coords"
	"github.com/san-kum/kicksim/internal/dynamo"
	"github.com/san-kum/kicksim/internal/galaxy"
	"github.com/san-kum/kicksim/internal/integrators"
	"github.com/san-kum/kicksim/internal/metrics"
	"github.com/san-kum/kicksim/internal/physics"
	"github.com/san-kum/kicksim/internal/units"
)

// Cosmology maps cosmic age (Gyr) to redshift.
type Cosmology interface {
	Redshift(ageGyr float64) float64
}

type Config struct {
	Integrator   string
	Natural      bool // integrate in natural units
	Scale        units.Scale
	MaxWall      time.Duration
	Resolution   int // sub-steps per segment, endpoints included
	Mode         galaxy.Mode
	FixedEpoch   int
	StopAtMerger bool
	Trajectory   bool
	Downsample   int
}

func DefaultConfig() Config {
	return Config{
		Integrator:   "rk4",
		Scale:        units.DefaultScale(),
		MaxWall:      120 * time.Second,
		Resolution:   1000,
		Mode:         galaxy.Evolving,
		StopAtMerger: true,
		Downsample:   1,
	}
}

// Input carries everything one integration needs. Vp is the post-kick
// galactic-frame velocity in km/s; R is the birth radius in kpc.
type Input struct {
	Index   int
	T0      int
	Survive bool
	Tinsp   float64 // Gyr
	R       float64
	Vp      r3.Vec
}

type Outcome struct {
	State          State
	Final          Phase
	ROffset        float64
	RProjOffset    float64
	MergerRedshift float64
	Merged         bool
	Elapsed        float64 // Gyr integrated
	Segments       int
	Wall           time.Duration
	EnergyDrift    float64
	MaxOffset      float64
	Trajectory     *Trajectory // set when recording without an external sink
}

// Integrator runs tracer integrations against a shared, read-only history.
// It is safe for concurrent use; all per-run state lives in Run.
type Integrator struct {
	hist   *galaxy.History
	cosmo  Cosmology
	cfg    Config
	logger *slog.Logger
	clock  func() time.Time
}

func New(hist *galaxy.History, cosmo Cosmology, cfg Config, logger *slog.Logger) (*Integrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := integrators.New(cfg.Integrator); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if cfg.Resolution < 2 {
		return nil, fmt.Errorf("%w: resolution must be at least 2, got %d", ErrConfig, cfg.Resolution)
	}
	if cfg.Mode == galaxy.Fixed && (cfg.FixedEpoch < 0 || cfg.FixedEpoch >= hist.Len()) {
		return nil, fmt.Errorf("%w: fixed epoch %d outside [0, %d)", ErrConfig, cfg.FixedEpoch, hist.Len())
	}
	if cfg.MaxWall <= 0 {
		return nil, fmt.Errorf("%w: max wall time must be positive", ErrConfig)
	}
	if cfg.Natural && (cfg.Scale.Ro <= 0 || cfg.Scale.Vo <= 0) {
		return nil, fmt.Errorf("%w: natural units need positive ro and vo", ErrConfig)
	}
	return &Integrator{
		hist:   hist,
		cosmo:  cosmo,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "orbit")),
		clock:  time.Now,
	}, nil
}

func (in *Integrator) Config() Config { return in.cfg }

// Run integrates one system. rng supplies the projection angles. When
// trajectory recording is enabled rows go to sink, or to an in-memory
// Trajectory on the outcome when sink is nil.
func (in *Integrator) Run(ctx context.Context, input Input, rng *rand.Rand, sink TrajectorySink) (Outcome, error) {
	if !input.Survive {
		n := math.NaN()
		return Outcome{
			State:          Disrupted,
			Final:          nanPhase(),
			ROffset:        n,
			RProjOffset:    n,
			MergerRedshift: n,
		}, nil
	}
	if input.T0 < 0 || input.T0 >= in.hist.Len() {
		return Outcome{}, fmt.Errorf("%w: tracer %d has t0=%d, history has %d epochs", ErrEpochRange, input.Index, input.T0, in.hist.Len())
	}
	if in.cfg.Natural {
		return run[units.Natural](ctx, in, input, rng, sink)
	}
	return run[units.Physical](ctx, in, input, rng, sink)
}

func run[U units.System](ctx context.Context, in *Integrator, input Input, rng *rand.Rand, sink TrajectorySink) (Outcome, error) {
	start := in.clock()
	cfg := in.cfg
	times := in.hist.Times
	last := len(times) - 1
	birthAge := times[input.T0]

	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	var record TrajectorySink
	if cfg.Trajectory {
		if sink == nil {
			out.Trajectory = &Trajectory{}
			sink = out.Trajectory
		}
		record = newDownsampler(sink, cfg.Downsample)
	}

	// Systems start in the galactic plane on the +x axis.
	proto := physics.NewGalacticOrbit[U](nil, cfg.Scale)
	orb := proto.FromPhysical(coords.OrbitFromCartesian[units.Physical](r3.Vec{X: input.R}, input.Vp))
	out.State = AwaitingFirstStep
	out.MergerRedshift = ExhaustedRedshift

	drift := metrics.NewEnergyDrift(proto)
	reach := metrics.NewMaxOffset(proto.LengthUnit())

	for tt := input.T0; tt < last; tt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pot, err := in.hist.PotentialAt(cfg.Mode, tt, cfg.FixedEpoch)
		if err != nil {
			return out, err
		}
		dyn := physics.NewGalacticOrbit[U](pot, cfg.Scale)
		drift.Segment(dyn)

		dt := times[tt+1] - times[tt]
		crossing := !out.Merged && out.Elapsed+dt > input.Tinsp
		step := dt
		if crossing && cfg.StopAtMerger {
			step = input.Tinsp - out.Elapsed
		}

		ts := floats.Span(make([]float64, cfg.Resolution), 0, dyn.Time(step))
		states, err := integrators.Integrate(integ, dyn, dyn.StateFromOrbit(orb), ts, drift, reach)
		if err != nil {
			return out, integrationError(input.Index, tt, err)
		}
		out.State = Stepping
		out.Segments++

		final, err := observe(dyn, states, birthAge+out.Elapsed, step, rng, record)
		if err != nil {
			return out, fmt.Errorf("tracer %d: trajectory: %w", input.Index, err)
		}
		out.Final = final.Phase
		out.ROffset = final.ROffset
		out.RProjOffset = final.RProjOffset
		out.Elapsed += step
		orb = dyn.Orbit(states[len(states)-1])

		if crossing {
			out.Merged = true
			out.MergerRedshift = in.cosmo.Redshift(birthAge + input.Tinsp)
			if cfg.StopAtMerger {
				out.State = Merged
				break
			}
		}
		if tt == last-1 {
			out.State = Exhausted
			break
		}
		if in.clock().Sub(start) > cfg.MaxWall {
			out.State = TimedOut
			if !out.Merged {
				out.MergerRedshift = TimedOutRedshift
			}
			break
		}
	}

	if out.Segments == 0 {
		// Born at the final epoch: nothing to integrate.
		p, v := coords.OrbitToCartesian(proto.ToPhysical(orb))
		out.State = Exhausted
		out.Final = Phase{p.X, p.Y, p.Z, v.X, v.Y, v.Z}
		out.ROffset = r3.Norm(p)
		out.RProjOffset = coords.ProjectedOffsets(rng, []r3.Vec{p})[0]
	}

	out.Wall = in.clock().Sub(start)
	out.EnergyDrift = drift.Peak()
	out.MaxOffset = reach.Value()

	in.logger.Debug("tracer evolved",
		slog.Int("idx", input.Index),
		slog.String("outcome", out.State.String()),
		slog.Float64("merger_z", out.MergerRedshift),
		slog.Float64("elapsed_gyr", out.Elapsed),
		slog.Float64("r_offset", out.ROffset),
		slog.Float64("rproj_offset", out.RProjOffset),
		slog.Duration("wall", out.Wall),
	)
	if out.State == TimedOut {
		in.logger.Warn("tracer exceeded wall-clock budget",
			slog.Int("idx", input.Index),
			slog.Float64("elapsed_gyr", out.Elapsed),
			slog.Duration("max_wall", cfg.MaxWall),
		)
	}
	return out, nil
}

// observe converts a segment to physical Cartesian rows, draws one viewing
// angle for the segment and forwards the rows to record. Without a recorder
// only the final sub-step is converted. The last row is returned.
func observe[U units.System](dyn *physics.GalacticOrbit[U], states []dynamo.State, age, step float64, rng *rand.Rand, record TrajectorySink) (Row, error) {
	pick := states[len(states)-1:]
	if record != nil {
		pick = states
	}

	rows := make([]Row, len(pick))
	pos := make([]r3.Vec, len(pick))
	for i, x := range pick {
		o := dyn.ToPhysical(dyn.Orbit(x))
		p, v := coords.OrbitToCartesian(o)
		rows[i] = Row{
			Phase:   Phase{p.X, p.Y, p.Z, v.X, v.Y, v.Z},
			ROffset: coords.TrueOffset(o.R, o.Z),
		}
		pos[i] = p
	}
	for i, proj := range coords.ProjectedOffsets(rng, pos) {
		rows[i].RProjOffset = proj
	}

	if record == nil {
		rows[0].Time = age + step
		return rows[0], nil
	}
	grid := floats.Span(make([]float64, len(rows)), age, age+step)
	for i := range rows {
		rows[i].Time = grid[i]
	}
	if err := record.WriteRows(rows); err != nil {
		return Row{}, err
	}
	return rows[len(rows)-1], nil
}

func integrationError(idx, epoch int, err error) error {
	ie := &IntegrationError{Index: idx, Epoch: epoch, Err: err}
	var se *dynamo.SimulationError
	if errors.As(err, &se) {
		ie.Step = se.Step
	}
	return ie
}
