package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/kicksim/internal/evolve"
)

const (
	MetadataFile   = "metadata.json"
	TracersFile    = "tracers.csv"
	TrajectoryFile = evolve.TrajectoryFile
)

var ErrNoTrajectories = errors.New("storage: run has no trajectories")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunDir is the directory holding every file of a run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	UUID      string    `json:"uuid"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`

	Seed       int64           `json:"seed"`
	Integrator string          `json:"integrator"`
	Config     json.RawMessage `json:"config,omitempty"`

	Mode             string         `json:"sampling_mode"`
	SurvivalFraction float64        `json:"survival_fraction"`
	MergeFraction    float64        `json:"merge_within_tmax_fraction"`
	Summary          evolve.Summary `json:"summary"`
	WallSeconds      float64        `json:"wall_seconds"`
	Trajectories     bool           `json:"trajectories"`
	Weights          []string       `json:"weights,omitempty"`
}

// NewRun creates the run directory and an initial metadata file.
func (s *Store) NewRun(label string) (string, error) {
	if label == "" {
		label = "run"
	}
	id := uuid.New()
	runID := fmt.Sprintf("%s_%s", label, id.String()[:8])
	if err := os.MkdirAll(s.RunDir(runID), 0755); err != nil {
		return "", err
	}
	meta := RunMetadata{
		ID:        runID,
		UUID:      id.String(),
		Label:     label,
		Timestamp: time.Now(),
		Status:    "running",
	}
	if err := s.SaveMetadata(&meta); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) SaveMetadata(meta *RunMetadata) error {
	f, err := os.Create(filepath.Join(s.RunDir(meta.ID), MetadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), MetadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SaveTracers writes the tracer table of a run.
func (s *Store) SaveTracers(runID string, t *Table) error {
	f, err := os.Create(filepath.Join(s.RunDir(runID), TracersFile))
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) LoadTracers(runID string) (*Table, error) {
	f, err := os.Open(filepath.Join(s.RunDir(runID), TracersFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}

// AttachTrajectories moves a consolidated trajectory file into the run
// directory. A file already in place is left alone.
func (s *Store) AttachTrajectories(runID, path string) error {
	dest := filepath.Join(s.RunDir(runID), TrajectoryFile)
	src, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if src == abs {
		_, err := os.Stat(dest)
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	return moveByCopy(src, dest)
}

func moveByCopy(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// SaveWeights writes weights_<name>.csv, one weight per tracer index, and
// records the name in the run metadata.
func (s *Store) SaveWeights(runID, name string, idx []int, w []float64) error {
	if len(idx) != len(w) {
		return fmt.Errorf("storage: %d indices for %d weights", len(idx), len(w))
	}
	t := NewTable(len(w))
	t.SetIndex(idx)
	t.Set("weight", w)
	f, err := os.Create(filepath.Join(s.RunDir(runID), "weights_"+name+".csv"))
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	for _, n := range meta.Weights {
		if n == name {
			return nil
		}
	}
	meta.Weights = append(meta.Weights, name)
	return s.SaveMetadata(meta)
}
