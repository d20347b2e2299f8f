package orbit

import "fmt"

// Row is one recorded sub-step. Time is the absolute cosmic age in Gyr.
type Row struct {
	Phase
	ROffset     float64
	RProjOffset float64
	Time        float64
}

// TrajectorySink receives the rows of one system, one segment at a time.
type TrajectorySink interface {
	WriteRows(rows []Row) error
}

// Trajectory is an in-memory sink.
type Trajectory struct {
	Rows []Row
}

func (t *Trajectory) WriteRows(rows []Row) error {
	t.Rows = append(t.Rows, rows...)
	return nil
}

// downsampler keeps every stride-th row of the whole trajectory, counting
// across segments.
type downsampler struct {
	sink   TrajectorySink
	stride int
	seen   int
	buf    []Row
}

func newDownsampler(sink TrajectorySink, stride int) *downsampler {
	if stride < 1 {
		stride = 1
	}
	return &downsampler{sink: sink, stride: stride}
}

func (d *downsampler) WriteRows(rows []Row) error {
	d.buf = d.buf[:0]
	for _, r := range rows {
		if d.seen%d.stride == 0 {
			d.buf = append(d.buf, r)
		}
		d.seen++
	}
	if len(d.buf) == 0 {
		return nil
	}
	return d.sink.WriteRows(d.buf)
}

// RowColumns names the trajectory columns in file order.
var RowColumns = []string{"X", "Y", "Z", "vX", "vY", "vZ", "R_offset", "Rproj_offset", "time"}

// Values flattens r in RowColumns order.
func (r Row) Values() []float64 {
	return []float64{r.X, r.Y, r.Z, r.VX, r.VY, r.VZ, r.ROffset, r.RProjOffset, r.Time}
}

// RowFromValues is the inverse of Row.Values.
func RowFromValues(v []float64) (Row, error) {
	if len(v) != len(RowColumns) {
		return Row{}, fmt.Errorf("trajectory row has %d values, want %d", len(v), len(RowColumns))
	}
	return Row{
		Phase:       Phase{X: v[0], Y: v[1], Z: v[2], VX: v[3], VY: v[4], VZ: v[5]},
		ROffset:     v[6],
		RProjOffset: v[7],
		Time:        v[8],
	}, nil
}
