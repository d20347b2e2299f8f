package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/kicksim/internal/storage"
	"github.com/san-kum/kicksim/internal/viz"
)

var (
	plotBins   int
	plotTracer int
	plotWidth  int
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("no runs found")
			return nil
		}
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSTATUS\tMODE\tSYSTEMS\tMERGED\tFAILED\tINTEG")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Mode,
			run.Summary.Systems,
			run.Summary.Merged,
			run.Summary.Failed,
			run.Integrator,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	wall := time.Duration(meta.WallSeconds * float64(time.Second))
	fmt.Println(viz.RenderSummary(meta.ID, meta.Summary, meta.SurvivalFraction, meta.MergeFraction, wall))
	fmt.Printf("status:       %s\n", meta.Status)
	fmt.Printf("started:      %s\n", meta.Timestamp.Format(time.RFC3339))
	fmt.Printf("seed:         %d\n", meta.Seed)
	fmt.Printf("integrator:   %s\n", meta.Integrator)
	fmt.Printf("trajectories: %t\n", meta.Trajectories)
	if len(meta.Weights) > 0 {
		fmt.Printf("weights:      %s\n", strings.Join(meta.Weights, ", "))
	}

	table, err := st.LoadTracers(meta.ID)
	if err != nil {
		return nil
	}
	proj, err := table.Column("Rproj_offset")
	if err != nil {
		return nil
	}
	if _, counts, err := viz.Histogram(positiveLog10(proj), 40); err == nil {
		fmt.Printf("log offsets:  %s\n", viz.Sparkline(counts, 40))
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("run: %s\n\n", meta.ID)

	if plotTracer >= 0 {
		trajs, err := st.LoadTrajectories(meta.ID)
		if err != nil {
			return err
		}
		rows, ok := trajs[plotTracer]
		if !ok {
			return fmt.Errorf("no trajectory for tracer %d", plotTracer)
		}
		graph, err := viz.RadiusCurve(rows, plotWidth)
		if err != nil {
			return err
		}
		fmt.Println(graph)
		return nil
	}

	table, err := st.LoadTracers(meta.ID)
	if err != nil {
		return err
	}
	proj, err := table.Column("Rproj_offset")
	if err != nil {
		return err
	}
	graph, err := viz.OffsetHistogram(proj, plotBins, plotWidth)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	return nil
}

func positiveLog10(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if v > 0 {
			out = append(out, math.Log10(v))
		}
	}
	return out
}
