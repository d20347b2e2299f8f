package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/kicksim/internal/binary"
	"github.com/san-kum/kicksim/internal/ensemble"
	"github.com/san-kum/kicksim/internal/orbit"
	"github.com/san-kum/kicksim/internal/weights"
)

var (
	progenitorColumns = []string{"Mns", "Mcomp", "Mhe", "Apre", "epre", "Vkick"}
	directColumns     = []string{"Vsys", "Tinsp", "SNsurvive"}
)

func readTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// optional returns the named column or NaN when it is absent.
func optional(t *Table, name string) []float64 {
	if v, err := t.Column(name); err == nil {
		return v
	}
	v := make([]float64, t.Len())
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}

func required(t *Table, names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, name := range names {
		v, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func hasAll(t *Table, names []string) bool {
	for _, n := range names {
		if _, err := t.Column(n); err != nil {
			return false
		}
	}
	return true
}

// LoadSamples reads sampled tracer parameters. R and t0 are required, then
// either the progenitor columns or the direct-Vsys columns. tbirth, zbirth
// and the four angles are optional; missing angles are sampled later.
func LoadSamples(path string) ([]ensemble.Sample, error) {
	t, err := readTableFile(path)
	if err != nil {
		return nil, err
	}
	base, err := required(t, "R", "t0")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	R, t0 := base[0], base[1]
	tbirth, zbirth := optional(t, "tbirth"), optional(t, "zbirth")
	snTheta, snPhi := optional(t, "SNtheta"), optional(t, "SNphi")
	sysTheta, sysPhi := optional(t, "SYStheta"), optional(t, "SYSphi")

	var prog, direct [][]float64
	switch {
	case hasAll(t, progenitorColumns):
		prog, _ = required(t, progenitorColumns...)
	case hasAll(t, directColumns):
		direct, _ = required(t, directColumns...)
	default:
		return nil, fmt.Errorf("%s: need progenitor columns %v or direct columns %v", path, progenitorColumns, directColumns)
	}

	samples := make([]ensemble.Sample, t.Len())
	for i := range samples {
		s := ensemble.Sample{
			R:        R[i],
			T0:       int(t0[i]),
			Tbirth:   tbirth[i],
			Zbirth:   zbirth[i],
			SNTheta:  snTheta[i],
			SNPhi:    snPhi[i],
			SYSTheta: sysTheta[i],
			SYSPhi:   sysPhi[i],
		}
		if prog != nil {
			s.Progenitor = &binary.Progenitor{
				Mns: prog[0][i], Mcomp: prog[1][i], Mhe: prog[2][i],
				Apre: prog[3][i], Epre: prog[4][i], Vkick: prog[5][i],
			}
		} else {
			survive := direct[2][i]
			if survive != 0 && survive != 1 {
				return nil, fmt.Errorf("%s: row %d: SNsurvive must be true/false or 0/1, got %v", path, i, survive)
			}
			s.Direct = &ensemble.Direct{Vsys: direct[0][i], Tinsp: direct[1][i], SNsurvive: survive == 1}
		}
		samples[i] = s
	}
	return samples, nil
}

// LoadPopulation reads Vsys and Tinsp columns from a population-synthesis
// sample.
func LoadPopulation(path string) (weights.Population, error) {
	t, err := readTableFile(path)
	if err != nil {
		return weights.Population{}, err
	}
	cols, err := required(t, "Vsys", "Tinsp")
	if err != nil {
		return weights.Population{}, fmt.Errorf("%s: %w", path, err)
	}
	return weights.Population{Vsys: cols[0], Tinsp: cols[1]}, nil
}

// LoadTrajectories reads the consolidated trajectories of a run keyed by
// tracer index.
func (s *Store) LoadTrajectories(runID string) (map[int][]orbit.Row, error) {
	f, err := os.Open(filepath.Join(s.RunDir(runID), TrajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoTrajectories
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(orbit.RowColumns) + 1
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("trajectory header: %w", err)
	}

	out := make(map[int][]orbit.Row)
	vals := make([]float64, len(orbit.RowColumns))
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		idx, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("trajectory index %q: %w", rec[0], err)
		}
		for j, c := range rec[1:] {
			if vals[j], err = parseCell(c); err != nil {
				return nil, err
			}
		}
		row, err := orbit.RowFromValues(vals)
		if err != nil {
			return nil, err
		}
		out[idx] = append(out[idx], row)
	}
}
