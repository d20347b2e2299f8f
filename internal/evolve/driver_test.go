package evolve

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/kicksim/internal/cosmology"
	"github.com/san-kum/kicksim/internal/dynamo"
	"github.com/san-kum/kicksim/internal/galaxy"
	"github.com/san-kum/kicksim/internal/metrics"
	"github.com/san-kum/kicksim/internal/orbit"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testHistory(t *testing.T) *galaxy.History {
	t.Helper()
	cosmo := cosmology.Planck18()
	times := []float64{3, 4, 5}
	redz := make([]float64, len(times))
	pots := make([]galaxy.Potential, len(times))
	for i, tt := range times {
		redz[i] = cosmo.Redshift(tt)
		pots[i] = galaxy.Composite{
			galaxy.MiyamotoNagai{M: 5e10, A: 3, B: 0.3},
			galaxy.NFW{M: 5e11 * (1 + 0.1*float64(i)), Rs: 15},
		}
	}
	h, err := galaxy.NewHistory(times, redz, pots)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func testIntegrator(t *testing.T, hist *galaxy.History, mutate func(*orbit.Config)) *orbit.Integrator {
	t.Helper()
	cfg := orbit.DefaultConfig()
	cfg.Resolution = 100
	if mutate != nil {
		mutate(&cfg)
	}
	in, err := orbit.New(hist, cosmology.Planck18(), cfg, discard)
	if err != nil {
		t.Fatal(err)
	}
	return in
}

func testInputs(hist *galaxy.History, n int) []orbit.Input {
	pot, _ := hist.PotentialAt(galaxy.Evolving, 0, 0)
	inputs := make([]orbit.Input, n)
	for i := range inputs {
		r := 3 + float64(i)
		inputs[i] = orbit.Input{
			Index:   i,
			T0:      i % 2,
			Survive: i%4 != 3,
			Tinsp:   0.5 + float64(i),
			R:       r,
			Vp:      r3.Vec{X: 10 * float64(i), Y: galaxy.Vcirc(pot, r), Z: 20},
		}
	}
	return inputs
}

func TestRunPreservesOrder(t *testing.T) {
	hist := testHistory(t)
	inputs := testInputs(hist, 8)
	d := &Driver{Workers: 3, Seed: 11, Logger: discard}

	results, err := d.Run(context.Background(), testIntegrator(t, hist, nil), inputs)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(inputs) {
		t.Fatalf("got %d results for %d inputs", len(results), len(inputs))
	}
	for i, r := range results {
		if r.Index != inputs[i].Index {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		if r.Failed() {
			t.Errorf("system %d failed: %v", i, r.Err)
		}
	}
	if results[3].Outcome.State != orbit.Disrupted {
		t.Errorf("system 3 should be disrupted, got %v", results[3].Outcome.State)
	}
	if !results[0].Outcome.Merged || results[0].Outcome.State != orbit.Merged {
		t.Errorf("system 0 should merge at 0.5 Gyr, got %v", results[0].Outcome.State)
	}
}

func TestSerialMatchesParallel(t *testing.T) {
	hist := testHistory(t)
	inputs := testInputs(hist, 6)
	integ := testIntegrator(t, hist, nil)

	serial, err := (&Driver{Seed: 5, Logger: discard}).Run(context.Background(), integ, inputs)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := (&Driver{Workers: AllCores, Seed: 5, Logger: discard}).Run(context.Background(), integ, inputs)
	if err != nil {
		t.Fatal(err)
	}
	for i := range serial {
		a, b := serial[i].Outcome, parallel[i].Outcome
		if a.State != b.State || !same(a.ROffset, b.ROffset) || !same(a.RProjOffset, b.RProjOffset) || !same(a.MergerRedshift, b.MergerRedshift) {
			t.Errorf("system %d differs: serial %+v parallel %+v", i, a, b)
		}
	}
}

func same(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func TestFailureIsolation(t *testing.T) {
	hist := testHistory(t)
	inputs := testInputs(hist, 4)
	inputs[1].R = 0
	inputs[1].Vp = r3.Vec{}

	m := metrics.NewRun()
	d := &Driver{Workers: 2, Logger: discard, Metrics: m}
	results, err := d.Run(context.Background(), testIntegrator(t, hist, nil), inputs)
	if err != nil {
		t.Fatal(err)
	}

	bad := results[1]
	if !bad.Failed() {
		t.Fatal("system at the origin should fail")
	}
	var ie *orbit.IntegrationError
	if !errors.As(bad.Err, &ie) || !errors.Is(bad.Err, dynamo.ErrInvalidState) {
		t.Errorf("unexpected error %v", bad.Err)
	}
	if !math.IsNaN(bad.Outcome.ROffset) || !math.IsNaN(bad.Outcome.MergerRedshift) {
		t.Errorf("failed system must carry NaN values, got %+v", bad.Outcome)
	}
	if bad.OutcomeLabel() != FailedOutcome {
		t.Errorf("label = %s", bad.OutcomeLabel())
	}
	for _, i := range []int{0, 2} {
		if results[i].Failed() {
			t.Errorf("system %d failed: %v", i, results[i].Err)
		}
	}

	if got := counterValue(t, m.Registry, "kicksim_system_failures_total"); got != 1 {
		t.Errorf("failure counter = %g", got)
	}
	// merged, exhausted and disrupted
	if n, err := testutil.GatherAndCount(m.Registry, "kicksim_systems_total"); err != nil || n != 3 {
		t.Errorf("outcome series = %d (%v), want 3", n, err)
	}
}

func counterValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestTrajectoryConsolidation(t *testing.T) {
	hist := testHistory(t)
	inputs := testInputs(hist, 5)
	record := func(c *orbit.Config) {
		c.Trajectory = true
		c.Downsample = 7
	}
	integ := testIntegrator(t, hist, record)

	inMemory, err := (&Driver{Logger: discard}).Run(context.Background(), integ, inputs)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	results, err := (&Driver{Workers: 2, Logger: discard, TrajectoryDir: dir}).Run(context.Background(), integ, inputs)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != TrajectoryFile {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("scratch files left behind: %v", names)
	}

	f, err := os.Open(filepath.Join(dir, TrajectoryFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if recs[0][0] != "idx" || len(recs[0]) != len(orbit.RowColumns)+1 {
		t.Fatalf("header = %v", recs[0])
	}

	counts := make(map[int]int)
	prev := -1
	for _, rec := range recs[1:] {
		idx, err := strconv.Atoi(rec[0])
		if err != nil {
			t.Fatal(err)
		}
		if idx < prev {
			t.Fatalf("rows out of index order: %d after %d", idx, prev)
		}
		prev = idx
		counts[idx]++
	}
	for i, r := range inMemory {
		want := 0
		if r.Outcome.Trajectory != nil {
			want = len(r.Outcome.Trajectory.Rows)
		}
		if counts[i] != want {
			t.Errorf("system %d: %d consolidated rows, want %d", i, counts[i], want)
		}
		if results[i].Outcome.Trajectory != nil {
			t.Errorf("system %d kept an in-memory trajectory", i)
		}
	}
	if counts[3] != 0 {
		t.Errorf("disrupted system wrote %d rows", counts[3])
	}
}

func TestCancelledRun(t *testing.T) {
	hist := testHistory(t)
	inputs := testInputs(hist, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := (&Driver{Logger: discard}).Run(ctx, testIntegrator(t, hist, nil), inputs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	for i, r := range results {
		if !errors.Is(r.Err, ErrNotDispatched) {
			t.Errorf("system %d: %v", i, r.Err)
		}
		if r.Index != i {
			t.Errorf("system %d has index %d", i, r.Index)
		}
	}
}

func TestProgress(t *testing.T) {
	hist := testHistory(t)
	inputs := testInputs(hist, 6)
	var calls, last atomic.Int64
	d := &Driver{
		Workers: 3,
		Logger:  discard,
		Progress: func(done, total int) {
			calls.Add(1)
			if total != len(inputs) {
				t.Errorf("total = %d", total)
			}
			if done == total {
				last.Store(int64(done))
			}
		},
	}
	if _, err := d.Run(context.Background(), testIntegrator(t, hist, nil), inputs); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 6 || last.Load() != 6 {
		t.Errorf("progress calls = %d, final = %d", calls.Load(), last.Load())
	}
}

func TestSummarize(t *testing.T) {
	nan := math.NaN()
	results := []Result{
		{Outcome: orbit.Outcome{State: orbit.Merged, Merged: true, ROffset: 1, RProjOffset: 0.5}},
		{Outcome: orbit.Outcome{State: orbit.Exhausted, ROffset: 3, RProjOffset: 2}},
		{Outcome: orbit.Outcome{State: orbit.Disrupted, ROffset: nan, RProjOffset: nan}},
		failed(3, orbit.Outcome{}, errors.New("boom")),
	}
	s := Summarize(results)
	if s.Systems != 4 || s.Failed != 1 || s.Merged != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.Outcomes["merged"] != 1 || s.Outcomes["disrupted"] != 1 || s.Outcomes[FailedOutcome] != 1 {
		t.Errorf("outcomes = %v", s.Outcomes)
	}
	if s.MedianOffset != 2 || s.MedianProjOffset != 1.25 {
		t.Errorf("medians = %g, %g", s.MedianOffset, s.MedianProjOffset)
	}
}
