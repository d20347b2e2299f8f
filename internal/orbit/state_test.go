package orbit

import (
	"errors"
	"testing"

	"github.com/san-kum/kicksim/internal/dynamo"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		s        State
		want     string
		terminal bool
	}{
		{AwaitingFirstStep, "awaiting_first_step", false},
		{Stepping, "stepping", false},
		{Merged, "merged", true},
		{Exhausted, "exhausted", true},
		{TimedOut, "timed_out", true},
		{Disrupted, "disrupted", true},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %s, want %s", got, tt.want)
		}
		if tt.s.Terminal() != tt.terminal {
			t.Errorf("%s: Terminal() = %v", tt.want, tt.s.Terminal())
		}
	}
}

func TestIntegrationErrorUnwrap(t *testing.T) {
	err := integrationError(3, 2, &dynamo.SimulationError{Step: 17, Wrapped: dynamo.ErrInvalidState})
	var ie *IntegrationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrationError, got %T", err)
	}
	if ie.Step != 17 || ie.Epoch != 2 || ie.Index != 3 {
		t.Errorf("unexpected context: %+v", ie)
	}
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Error("IntegrationError should unwrap to the cause")
	}
}

func TestDownsampler(t *testing.T) {
	sink := &Trajectory{}
	d := newDownsampler(sink, 4)
	for seg := 0; seg < 3; seg++ {
		rows := make([]Row, 5)
		for i := range rows {
			rows[i].Time = float64(seg*5 + i)
		}
		if err := d.WriteRows(rows); err != nil {
			t.Fatal(err)
		}
	}
	want := []float64{0, 4, 8, 12}
	if len(sink.Rows) != len(want) {
		t.Fatalf("kept %d rows, want %d", len(sink.Rows), len(want))
	}
	for i, r := range sink.Rows {
		if r.Time != want[i] {
			t.Errorf("row %d time %g, want %g", i, r.Time, want[i])
		}
	}
}

func TestRowValues(t *testing.T) {
	r := Row{Phase: Phase{X: 1, Y: 2, Z: 3, VX: 4, VY: 5, VZ: 6}, ROffset: 7, RProjOffset: 8, Time: 9}
	v := r.Values()
	if len(v) != len(RowColumns) {
		t.Fatalf("%d values for %d columns", len(v), len(RowColumns))
	}
	back, err := RowFromValues(v)
	if err != nil {
		t.Fatal(err)
	}
	if back != r {
		t.Errorf("got %+v, want %+v", back, r)
	}
	if _, err := RowFromValues(v[:3]); err == nil {
		t.Error("short row accepted")
	}
}
