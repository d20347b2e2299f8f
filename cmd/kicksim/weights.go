package main

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/kicksim/internal/storage"
	"github.com/san-kum/kicksim/internal/weights"
)

var (
	weightMethods  []string
	weightName     string
	combineMethod  string
	tinspIndex     float64
	minTinsp       float64
	vsysMethod     string
	vsysParams     []float64
	obsOffset      float64
	obsSigma       float64
	populationPath string
	tinspFloor     float64
	noNormalize    bool
)

func newWeightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights [run_id]",
		Short: "weight the tracers of a run and store the weights",
		Long: `weights computes a weight per tracer and writes it next to the run.

  tinsp       power law in inspiral time (--index, --min-tinsp)
  vsys        prior on systemic velocity (--vsys-method, --param)
  offset      gaussian likelihood of the projected offset (--offset, --sigma)
  population  joint (Vsys, Tinsp) density of a population sample (--population)

Several methods are merged with --combine. The samples method instead
weights the rows of --population by the tracers near --offset and cannot be
combined.`,
		Args: cobra.ExactArgs(1),
		RunE: runWeights,
	}
	f := cmd.Flags()
	f.StringSliceVar(&weightMethods, "method", nil, "tinsp|vsys|offset|population|samples (repeatable)")
	f.StringVar(&weightName, "name", "", "name of the stored weights (defaults to the methods)")
	f.StringVar(&combineMethod, "combine", string(weights.Multiply), "combine several methods (add|multiply)")
	f.Float64Var(&tinspIndex, "index", -1, "power-law index of the inspiral-time weight")
	f.Float64Var(&minTinsp, "min-tinsp", weights.DefaultMinTinsp, "inspiral time (Gyr) where the power law saturates")
	f.StringVar(&vsysMethod, "vsys-method", string(weights.Maxwellian), "flat_in_log|maxwellian|gaussian")
	f.Float64SliceVar(&vsysParams, "param", nil, "parameters of the vsys prior")
	f.Float64Var(&obsOffset, "offset", 0, "observed projected offset (kpc)")
	f.Float64Var(&obsSigma, "sigma", 0, "error of the observed offset (kpc)")
	f.StringVar(&populationPath, "population", "", "population sample with Vsys and Tinsp columns (csv)")
	f.Float64Var(&tinspFloor, "tinsp-floor", weights.DefaultTinspFloor, "smallest population inspiral time (Gyr)")
	f.BoolVar(&noNormalize, "no-normalize", false, "keep raw weights instead of scaling to [0, 1]")
	cmd.MarkFlagRequired("method")
	return cmd
}

func runWeights(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	table, err := st.LoadTracers(meta.ID)
	if err != nil {
		return err
	}
	idx, err := table.Index()
	if err != nil {
		return err
	}
	normalize := !noNormalize

	name := weightName
	if name == "" {
		name = strings.Join(weightMethods, "_")
	}

	var w []float64
	if slices.Contains(weightMethods, "samples") {
		if len(weightMethods) > 1 {
			return fmt.Errorf("%w: samples weights the population and cannot be combined", weights.ErrBadParams)
		}
		w, err = populationWeights(table, normalize)
		if err != nil {
			return err
		}
		idx = make([]int, len(w))
		for i := range idx {
			idx[i] = i
		}
	} else {
		sets := make([][]float64, 0, len(weightMethods))
		for _, m := range weightMethods {
			set, err := tracerWeights(table, m, normalize)
			if err != nil {
				return fmt.Errorf("%s: %w", m, err)
			}
			sets = append(sets, set)
		}
		w = sets[0]
		if len(sets) > 1 {
			w, err = weights.Combine(sets, weights.CombineMethod(combineMethod), normalize)
			if err != nil {
				return err
			}
		}
	}

	if err := st.SaveWeights(meta.ID, name, idx, w); err != nil {
		return err
	}
	logger.Info("saved weights", "run", meta.ID, "name", name, "rows", len(w))

	finite := make([]float64, 0, len(w))
	for _, v := range w {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	fmt.Printf("weights %q: %d rows, %d finite", name, len(w), len(finite))
	if len(finite) > 0 {
		fmt.Printf(", mean %.4g", stat.Mean(finite, nil))
	}
	fmt.Println()
	return nil
}

func tracerWeights(table *storage.Table, method string, normalize bool) ([]float64, error) {
	switch method {
	case "tinsp":
		tinsp, err := table.Column("Tinsp")
		if err != nil {
			return nil, err
		}
		return weights.Tinsp(tinsp, tinspIndex, minTinsp, normalize)
	case "vsys":
		vsys, err := table.Column("Vsys")
		if err != nil {
			return nil, err
		}
		m, err := weights.ParseVsysMethod(vsysMethod)
		if err != nil {
			return nil, err
		}
		params := vsysParams
		if len(params) == 0 && m == weights.Maxwellian {
			params = []float64{weights.DefaultMaxwellScale}
		}
		return weights.Vsys(vsys, m, params, normalize)
	case "offset":
		proj, err := table.Column("Rproj_offset")
		if err != nil {
			return nil, err
		}
		return weights.Observations(proj, obsOffset, obsSigma, normalize)
	case "population":
		pop, err := loadPopulation()
		if err != nil {
			return nil, err
		}
		vsys, tinsp, err := vsysTinsp(table)
		if err != nil {
			return nil, err
		}
		return weights.FromSamples(vsys, tinsp, pop, tinspFloor, normalize)
	}
	return nil, fmt.Errorf("%w: weighting method %q", weights.ErrUnknownMethod, method)
}

func populationWeights(table *storage.Table, normalize bool) ([]float64, error) {
	pop, err := loadPopulation()
	if err != nil {
		return nil, err
	}
	proj, err := table.Column("Rproj_offset")
	if err != nil {
		return nil, err
	}
	vsys, tinsp, err := vsysTinsp(table)
	if err != nil {
		return nil, err
	}
	return weights.SamplesFromTracers(proj, vsys, tinsp, obsOffset, obsSigma, pop, tinspFloor, normalize)
}

func loadPopulation() (weights.Population, error) {
	if populationPath == "" {
		return weights.Population{}, fmt.Errorf("%w: --population is required", weights.ErrBadParams)
	}
	return storage.LoadPopulation(populationPath)
}

func vsysTinsp(table *storage.Table) (vsys, tinsp []float64, err error) {
	if vsys, err = table.Column("Vsys"); err != nil {
		return nil, nil, err
	}
	if tinsp, err = table.Column("Tinsp"); err != nil {
		return nil, nil, err
	}
	return vsys, tinsp, nil
}
