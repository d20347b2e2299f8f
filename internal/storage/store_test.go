package storage

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/kicksim/internal/binary"
	"github.com/san-kum/kicksim/internal/ensemble"
	"github.com/san-kum/kicksim/internal/evolve"
	"github.com/san-kum/kicksim/internal/orbit"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	return st
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestMetadataRoundTrip(t *testing.T) {
	st := newStore(t)

	runID, err := st.NewRun("quick")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "quick_"))

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, "running", meta.Status)
	assert.Len(t, meta.UUID, 36)

	meta.Status = "done"
	meta.Seed = 42
	meta.Integrator = "rk4"
	meta.Config = json.RawMessage(`{"resolution":1000}`)
	meta.SurvivalFraction = 0.25
	meta.Summary = evolve.Summary{Systems: 4, Outcomes: map[string]int{"merged": 1, "disrupted": 3}, Merged: 1}
	require.NoError(t, st.SaveMetadata(meta))

	back, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, "done", back.Status)
	assert.Equal(t, int64(42), back.Seed)
	assert.Equal(t, 3, back.Summary.Outcomes["disrupted"])
	assert.JSONEq(t, `{"resolution":1000}`, string(back.Config))
}

func TestListSkipsForeignDirectories(t *testing.T) {
	st := newStore(t)
	first, err := st.NewRun("a")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := st.NewRun("b")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(st.RunDir(""), "not-a-run"), 0755))

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)

	empty, err := New(filepath.Join(t.TempDir(), "missing")).List()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testTracers() ([]ensemble.Tracer, []evolve.Result) {
	nan := math.NaN()
	p := &binary.Progenitor{Mns: 1.3, Mcomp: 1.4, Mhe: 2.5, Apre: 5, Vkick: 300}
	tracers := []ensemble.Tracer{
		{Index: 0, Vcirc: 210, Vesc: 500, Vp: r3.Vec{X: 1, Y: 2, Z: 3}, Vpost: math.Sqrt(14)},
		{Index: 1, Vcirc: 190, Vesc: 450, Vp: r3.Vec{X: nan, Y: nan, Z: nan}, Vpost: nan},
	}
	tracers[0].Sample = ensemble.Sample{R: 4, T0: 1, Tbirth: 3, Zbirth: 2, Progenitor: p}
	tracers[0].Kick = binary.Kick{Apost: 8.5, Epost: 0.7, Vsys: 120}
	tracers[0].Survival = binary.Survival{Check1: true, Check2: true, Check3: true, Check4: true, Survive: true}
	tracers[0].Tinsp = 1.5
	tracers[1].Sample = ensemble.Sample{R: 6, T0: 0, Tbirth: 2, Zbirth: 3, Progenitor: p}
	tracers[1].Tinsp = nan

	results := []evolve.Result{
		{Index: 0, Outcome: orbit.Outcome{State: orbit.Merged, Merged: true, ROffset: 5.5, RProjOffset: 4, MergerRedshift: 1.2, Segments: 2, Wall: 1500 * time.Millisecond}},
		{Index: 1, Outcome: orbit.Outcome{State: orbit.Disrupted, ROffset: nan, RProjOffset: nan, MergerRedshift: nan}, Err: errors.New("boom, with comma")},
	}
	return tracers, results
}

func TestTracersRoundTrip(t *testing.T) {
	st := newStore(t)
	runID, err := st.NewRun("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "run_"))

	tracers, results := testTracers()
	table, err := TracerTable(tracers, results, 6)
	require.NoError(t, err)
	require.NoError(t, st.SaveTracers(runID, table))

	back, err := st.LoadTracers(runID)
	require.NoError(t, err)
	assert.Equal(t, 2, back.Len())
	assert.Equal(t, IndexColumn, back.Columns()[0])

	idx, err := back.Index()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, idx)

	tobs, err := back.Column("Tobs")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, tobs)

	tinsp, err := back.Column("Tinsp")
	require.NoError(t, err)
	assert.Equal(t, 1.5, tinsp[0])
	assert.True(t, math.IsNaN(tinsp[1]))

	wall, err := back.Column("wall_s")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, wall[0], 1e-12)

	survive, err := back.Column("SNsurvive")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, survive)

	outcome, err := back.Text("outcome")
	require.NoError(t, err)
	assert.Equal(t, []string{"merged", evolve.FailedOutcome}, outcome)

	msgs, err := back.Text("error")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "boom, with comma"}, msgs)

	failed, err := back.Column("failed")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, failed)
}

func TestTracerTableRejectsMisalignedResults(t *testing.T) {
	tracers, results := testTracers()
	_, err := TracerTable(tracers, results[:1], 6)
	assert.Error(t, err)

	results[0].Index, results[1].Index = 1, 0
	_, err = TracerTable(tracers, results, 6)
	assert.Error(t, err)
}

func TestLoadSamplesProgenitor(t *testing.T) {
	path := writeFile(t, t.TempDir(), "samples.csv",
		"R,t0,Mns,Mcomp,Mhe,Apre,epre,Vkick,SNtheta\n"+
			"4.5,2,1.3,1.4,2.5,5,0,300,1.2\n"+
			"7,0,1.35,1.3,3.1,8,0,50,\n")

	samples, err := LoadSamples(path)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	s := samples[0]
	assert.Equal(t, 4.5, s.R)
	assert.Equal(t, 2, s.T0)
	require.NotNil(t, s.Progenitor)
	assert.Nil(t, s.Direct)
	assert.Equal(t, binary.Progenitor{Mns: 1.3, Mcomp: 1.4, Mhe: 2.5, Apre: 5, Vkick: 300}, *s.Progenitor)
	assert.Equal(t, 1.2, s.SNTheta)
	assert.True(t, math.IsNaN(s.SNPhi))
	assert.True(t, math.IsNaN(s.Tbirth))
	assert.True(t, math.IsNaN(samples[1].SNTheta))
}

func TestLoadSamplesDirect(t *testing.T) {
	path := writeFile(t, t.TempDir(), "direct.csv",
		"R,t0,tbirth,zbirth,Vsys,Tinsp,SNsurvive\n"+
			"3,1,4.1,1.5,150,0.2,True\n"+
			"5,1,4.1,1.5,80,9,False\n")

	samples, err := LoadSamples(path)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.NotNil(t, samples[0].Direct)
	assert.Equal(t, ensemble.Direct{Vsys: 150, Tinsp: 0.2, SNsurvive: true}, *samples[0].Direct)
	assert.False(t, samples[1].Direct.SNsurvive)
	assert.Equal(t, 4.1, samples[0].Tbirth)

	mode, err := ensemble.DetectMode(samples)
	require.NoError(t, err)
	assert.Equal(t, ensemble.DirectMode, mode)
}

func TestLoadSamplesErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSamples(writeFile(t, dir, "none.csv", "R,t0,Vsys\n1,0,100\n"))
	assert.Error(t, err)

	_, err = LoadSamples(writeFile(t, dir, "noR.csv", "t0,Vsys,Tinsp,SNsurvive\n0,1,1,1\n"))
	assert.Error(t, err)

	_, err = LoadSamples(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSamplesRejectsUnsetSurvival(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSamples(writeFile(t, dir, "blank.csv",
		"R,t0,Vsys,Tinsp,SNsurvive\n"+
			"3,1,150,0.2,True\n"+
			"5,1,80,9,\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")

	_, err = LoadSamples(writeFile(t, dir, "two.csv",
		"R,t0,Vsys,Tinsp,SNsurvive\n3,1,150,0.2,2\n"))
	assert.Error(t, err)

	samples, err := LoadSamples(writeFile(t, dir, "numeric.csv",
		"R,t0,Vsys,Tinsp,SNsurvive\n3,1,150,0.2,1\n5,1,80,9,0\n"))
	require.NoError(t, err)
	assert.True(t, samples[0].Direct.SNsurvive)
	assert.False(t, samples[1].Direct.SNsurvive)
}

func TestLoadPopulation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pop.csv", "Vsys,Tinsp,other\n100,1,x\n200,2,y\n")
	pop, err := LoadPopulation(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200}, pop.Vsys)
	assert.Equal(t, []float64{1, 2}, pop.Tinsp)
}

func TestTrajectoriesAttachAndLoad(t *testing.T) {
	st := newStore(t)
	runID, err := st.NewRun("traj")
	require.NoError(t, err)

	_, err = st.LoadTrajectories(runID)
	assert.ErrorIs(t, err, ErrNoTrajectories)

	src := writeFile(t, t.TempDir(), TrajectoryFile,
		"idx,X,Y,Z,vX,vY,vZ,R_offset,Rproj_offset,time\n"+
			"0,1,0,0,0,200,0,1,0.5,3\n"+
			"0,0,1,0,-200,0,0,1,0.7,3.1\n"+
			"2,5,5,0,0,0,10,7.07,NaN,4\n")
	require.NoError(t, st.AttachTrajectories(runID, src))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source should be moved")

	trajs, err := st.LoadTrajectories(runID)
	require.NoError(t, err)
	require.Len(t, trajs, 2)
	require.Len(t, trajs[0], 2)
	assert.Equal(t, 3.1, trajs[0][1].Time)
	assert.Equal(t, -200.0, trajs[0][1].VX)
	assert.True(t, math.IsNaN(trajs[2][0].RProjOffset))

	inPlace := filepath.Join(st.RunDir(runID), TrajectoryFile)
	assert.NoError(t, st.AttachTrajectories(runID, inPlace))
}

func TestSaveWeights(t *testing.T) {
	st := newStore(t)
	runID, err := st.NewRun("w")
	require.NoError(t, err)

	require.NoError(t, st.SaveWeights(runID, "tinsp", []int{0, 1, 2}, []float64{1, 0.5, math.NaN()}))
	require.NoError(t, st.SaveWeights(runID, "tinsp", []int{0, 1, 2}, []float64{1, 0.25, 0}))
	assert.Error(t, st.SaveWeights(runID, "vsys", []int{0}, []float64{1, 2}))

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tinsp"}, meta.Weights)

	f, err := os.Open(filepath.Join(st.RunDir(runID), "weights_tinsp.csv"))
	require.NoError(t, err)
	defer f.Close()
	table, err := ReadTable(f)
	require.NoError(t, err)
	w, err := table.Column("weight")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.25, 0}, w)
}

func TestTableSetReplacesKind(t *testing.T) {
	table := NewTable(2)
	table.Set("a", []float64{1, 2})
	table.SetText("a", []string{"x", "y"})
	assert.Equal(t, []string{"a"}, table.Columns())
	_, err := table.Column("a")
	assert.Error(t, err)
	assert.Panics(t, func() { table.Set("b", []float64{1}) })
}
