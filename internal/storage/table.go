package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// IndexColumn keys every table row to its tracer.
const IndexColumn = "idx"

// textColumns are always read back as strings.
var textColumns = map[string]bool{"outcome": true, "error": true}

// Table is a columnar CSV table with numeric and text columns.
type Table struct {
	n       int
	columns []string
	num     map[string][]float64
	text    map[string][]string
}

func NewTable(n int) *Table {
	return &Table{n: n, num: make(map[string][]float64), text: make(map[string][]string)}
}

func (t *Table) Len() int { return t.n }

func (t *Table) Columns() []string { return t.columns }

func (t *Table) add(name string) {
	if _, ok := t.num[name]; ok {
		return
	}
	if _, ok := t.text[name]; ok {
		return
	}
	t.columns = append(t.columns, name)
}

// Set stores a numeric column. It panics if v has the wrong length.
func (t *Table) Set(name string, v []float64) {
	if len(v) != t.n {
		panic(fmt.Sprintf("storage: column %s has %d rows, table has %d", name, len(v), t.n))
	}
	t.add(name)
	delete(t.text, name)
	t.num[name] = v
}

func (t *Table) SetText(name string, v []string) {
	if len(v) != t.n {
		panic(fmt.Sprintf("storage: column %s has %d rows, table has %d", name, len(v), t.n))
	}
	t.add(name)
	delete(t.num, name)
	t.text[name] = v
}

func (t *Table) SetIndex(idx []int) {
	v := make([]float64, len(idx))
	for i, x := range idx {
		v[i] = float64(x)
	}
	t.Set(IndexColumn, v)
}

func (t *Table) Column(name string) ([]float64, error) {
	v, ok := t.num[name]
	if !ok {
		return nil, fmt.Errorf("storage: no numeric column %q", name)
	}
	return v, nil
}

func (t *Table) Text(name string) ([]string, error) {
	v, ok := t.text[name]
	if !ok {
		return nil, fmt.Errorf("storage: no text column %q", name)
	}
	return v, nil
}

func (t *Table) Index() ([]int, error) {
	v, err := t.Column(IndexColumn)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(v))
	for i, x := range v {
		idx[i] = int(x)
	}
	return idx, nil
}

func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	row := make([]string, len(t.columns))
	for i := 0; i < t.n; i++ {
		for j, name := range t.columns {
			if v, ok := t.num[name]; ok {
				row[j] = strconv.FormatFloat(v[i], 'g', -1, 64)
			} else {
				row[j] = t.text[name][i]
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable parses a CSV with a header row. A column is numeric when every
// non-empty cell parses as a number or boolean; empty cells read as NaN.
func ReadTable(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: empty table")
	}
	header := records[0]
	rows := records[1:]
	t := NewTable(len(rows))
	for j, name := range header {
		name = strings.TrimSpace(name)
		cells := make([]string, len(rows))
		for i, rec := range rows {
			cells[i] = rec[j]
		}
		if textColumns[name] {
			t.SetText(name, cells)
			continue
		}
		if v, ok := parseColumn(cells); ok {
			t.Set(name, v)
		} else {
			t.SetText(name, cells)
		}
	}
	return t, nil
}

func parseColumn(cells []string) ([]float64, bool) {
	v := make([]float64, len(cells))
	for i, c := range cells {
		x, err := parseCell(c)
		if err != nil {
			return nil, false
		}
		v[i] = x
	}
	return v, true
}

func parseCell(c string) (float64, error) {
	c = strings.TrimSpace(c)
	switch strings.ToLower(c) {
	case "":
		return math.NaN(), nil
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(c, 64)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
