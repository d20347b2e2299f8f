package evolve

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/kicksim/internal/orbit"
)

// TrajectoryFile is the consolidated trajectory table.
const TrajectoryFile = "trajectories.csv"

// fileSink writes one system's rows as headerless CSV.
type fileSink struct {
	path string
	f    *os.File
	w    *csv.Writer
	buf  []string
}

func createFileSink(path string) (*fileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &fileSink{
		path: path,
		f:    f,
		w:    csv.NewWriter(f),
		buf:  make([]string, len(orbit.RowColumns)),
	}, nil
}

func (s *fileSink) WriteRows(rows []orbit.Row) error {
	for _, r := range rows {
		for i, v := range r.Values() {
			s.buf[i] = formatFloat(v)
		}
		if err := s.w.Write(s.buf); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// consolidate concatenates the per-system files in index order into dest,
// prefixing every row with the system index, and removes them.
func consolidate(results []Result, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	w := csv.NewWriter(out)
	if err := w.Write(append([]string{"idx"}, orbit.RowColumns...)); err != nil {
		out.Close()
		return err
	}

	for i := range results {
		token := results[i].traj
		if token == "" {
			continue
		}
		if err := appendTrajectory(w, strconv.Itoa(results[i].Index), token); err != nil {
			out.Close()
			return fmt.Errorf("tracer %d: %w", results[i].Index, err)
		}
		os.Remove(token)
		results[i].traj = ""
	}

	w.Flush()
	if err := w.Error(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func appendTrajectory(w *csv.Writer, idx, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = len(orbit.RowColumns)
	row := make([]string, 0, len(orbit.RowColumns)+1)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		row = append(row[:0], idx)
		row = append(row, rec...)
		if err := w.Write(row); err != nil {
			return err
		}
	}
}
