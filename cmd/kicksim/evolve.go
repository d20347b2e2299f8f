package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/san-kum/kicksim/internal/config"
	"github.com/san-kum/kicksim/internal/ensemble"
	"github.com/san-kum/kicksim/internal/evolve"
	"github.com/san-kum/kicksim/internal/galaxy"
	"github.com/san-kum/kicksim/internal/integrators"
	"github.com/san-kum/kicksim/internal/metrics"
	"github.com/san-kum/kicksim/internal/orbit"
	"github.com/san-kum/kicksim/internal/storage"
	"github.com/san-kum/kicksim/internal/viz"
)

var (
	samplesPath  string
	configFile   string
	preset       string
	workers      int
	maxProcs     bool
	integrator   string
	resolution   int
	tintMax      float64
	fixedEpoch   int
	cumulative   bool
	saveTraj     bool
	downsample   int
	noStop       bool
	seed         int64
	label        string
	showProgress bool
	metricsFile  string
)

func newEvolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "kick, filter and integrate a sampled binary population",
		Long: `evolve reads a CSV of sampled binaries, applies the supernova kick,
keeps the bound systems and integrates each one through the galaxy until it
merges or the present day is reached.

Settings come from the defaults, then --config, then --preset, then flags.`,
		Args: cobra.NoArgs,
		RunE: runEvolve,
	}
	f := cmd.Flags()
	f.StringVar(&samplesPath, "samples", "", "sampled parameters (csv)")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.IntVar(&workers, "workers", 0, "parallel workers (0 runs serially)")
	f.BoolVar(&maxProcs, "max-procs", false, "use one worker per CPU")
	f.StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator ("+strings.Join(integrators.Names(), "|")+")")
	f.IntVar(&resolution, "resolution", config.DefaultResolution, "sub-steps per epoch segment")
	f.Float64Var(&tintMax, "tint-max", config.DefaultMaxWallSeconds, "wall-clock limit per system in seconds")
	f.IntVar(&fixedEpoch, "fixed-epoch", 0, "integrate in the potential of this epoch only")
	f.BoolVar(&cumulative, "cumulative", false, "sum the potentials of every epoch so far")
	f.BoolVar(&saveTraj, "save-traj", false, "record trajectories")
	f.IntVar(&downsample, "downsample", config.DefaultDownsample, "keep every n-th trajectory row")
	f.BoolVar(&noStop, "no-stop-at-merger", false, "keep integrating merged systems to the present")
	f.Int64Var(&seed, "seed", 0, "random seed (0 picks one from the clock)")
	f.StringVar(&label, "label", "", "run label")
	f.BoolVar(&showProgress, "progress", false, "show live progress when stdout is a terminal")
	f.StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this file")
	cmd.MarkFlagRequired("samples")
	cmd.MarkFlagsMutuallyExclusive("workers", "max-procs")
	cmd.MarkFlagsMutuallyExclusive("fixed-epoch", "cumulative")
	return cmd
}

func evolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if preset != "" && !config.ApplyPreset(cfg, preset) {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if maxProcs {
		cfg.Workers = evolve.AllCores
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("resolution") {
		cfg.Resolution = resolution
	}
	if flags.Changed("tint-max") {
		cfg.MaxWallSeconds = tintMax
	}
	if flags.Changed("fixed-epoch") {
		cfg.PotentialMode = galaxy.Fixed.String()
		cfg.FixedEpoch = fixedEpoch
	}
	if cumulative {
		cfg.PotentialMode = galaxy.Cumulative.String()
	}
	if saveTraj {
		cfg.SaveTrajectories = true
	}
	if flags.Changed("downsample") {
		cfg.Downsample = downsample
	}
	if noStop {
		cfg.StopAtMerger = false
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("label") {
		cfg.Label = label
	}
	if cmd.Root().PersistentFlags().Changed("data") || cfg.OutputDir == "" {
		cfg.OutputDir = dataDir
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg, cfg.Validate()
}

func runEvolve(cmd *cobra.Command, args []string) error {
	cfg, err := evolveConfig(cmd)
	if err != nil {
		return err
	}
	hist, err := cfg.History()
	if err != nil {
		return err
	}
	ocfg, err := cfg.OrbitConfig()
	if err != nil {
		return err
	}

	samples, err := storage.LoadSamples(samplesPath)
	if err != nil {
		return err
	}
	logger.Info("loaded samples", "path", samplesPath, "systems", len(samples))

	env := ensemble.Env{
		History:    hist,
		Mode:       ocfg.Mode,
		FixedEpoch: ocfg.FixedEpoch,
		TinspMax:   cfg.TinspMax,
		Logger:     logger,
	}
	// angles draw from the stream after the last system's
	ens, err := ensemble.Prepare(samples, env, rand.New(rand.NewSource(cfg.Seed+int64(len(samples)))))
	if err != nil {
		return err
	}

	integ, err := orbit.New(hist, cfg.CosmologyModel(), ocfg, logger)
	if err != nil {
		return err
	}

	st := storage.New(cfg.OutputDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.NewRun(cfg.Label)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	inputs := make([]orbit.Input, len(ens.Tracers))
	for i := range ens.Tracers {
		inputs[i] = ens.Tracers[i].Input()
	}

	run := metrics.NewRun()
	d := &evolve.Driver{
		Workers: cfg.Workers,
		Seed:    cfg.Seed,
		Logger:  logger,
		Metrics: run,
	}
	if cfg.SaveTrajectories {
		d.TrajectoryDir = st.RunDir(runID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("evolving %d %s systems (run %s)\n", len(inputs), ens.Mode, runID)
	start := time.Now()

	var results []evolve.Result
	var runErr error
	if showProgress && isatty.IsTerminal(os.Stdout.Fd()) {
		runErr = viz.RunWithProgress(ctx, runID, len(inputs), func(ctx context.Context, report func(int, int)) error {
			d.Progress = report
			var err error
			results, err = d.Run(ctx, integ, inputs)
			return err
		})
	} else {
		results, runErr = d.Run(ctx, integ, inputs)
	}
	wall := time.Since(start)
	if results == nil {
		return runErr
	}

	table, err := storage.TracerTable(ens.Tracers, results, hist.Times[hist.Len()-1])
	if err != nil {
		return err
	}
	if err := st.SaveTracers(runID, table); err != nil {
		return err
	}
	if cfg.SaveTrajectories {
		err := st.AttachTrajectories(runID, filepath.Join(d.TrajectoryDir, evolve.TrajectoryFile))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	summary := evolve.Summarize(results)
	echo, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	meta.Status = "completed"
	if runErr != nil {
		meta.Status = "cancelled"
	}
	meta.Seed = cfg.Seed
	meta.Integrator = cfg.Integrator
	meta.Config = echo
	meta.Mode = ens.Mode.String()
	meta.SurvivalFraction = ens.SurvivalFraction
	meta.MergeFraction = ens.MergeFraction
	meta.Summary = summary
	meta.WallSeconds = wall.Seconds()
	meta.Trajectories = cfg.SaveTrajectories
	if err := st.SaveMetadata(meta); err != nil {
		return err
	}

	run.SetSurvivalFraction(ens.SurvivalFraction)
	run.SetMergeFraction(ens.MergeFraction)
	if metricsFile != "" {
		if err := run.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	fmt.Println(viz.RenderSummary(runID, summary, ens.SurvivalFraction, ens.MergeFraction, wall))
	return runErr
}
