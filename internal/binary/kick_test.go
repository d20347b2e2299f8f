package binary

import (
	"errors"
	"math"
	"testing"
)

func TestBlaauwKick(t *testing.T) {
	// Symmetric mass loss without a kick: e = dM / Mpost.
	p := Progenitor{Mns: 1.4, Mcomp: 1.4, Mhe: 3, Apre: 5}
	k := ApplyKick(p, 0, 0)

	mpre, mpost := p.Mhe+p.Mcomp, p.Mns+p.Mcomp
	wantE := (mpre - mpost) / mpost
	wantA := p.Apre * mpost / (2*mpost - mpre)

	if math.Abs(k.Epost-wantE) > 1e-9 {
		t.Errorf("Epost = %g, want %g", k.Epost, wantE)
	}
	if math.Abs(k.Apost-wantA) > 1e-9*wantA {
		t.Errorf("Apost = %g, want %g", k.Apost, wantA)
	}
	if k.Vsx != 0 || k.Vsz != 0 {
		t.Errorf("systemic velocity should lie along y, got (%g, %g, %g)", k.Vsx, k.Vsy, k.Vsz)
	}
	wantVsy := -(p.Mhe - p.Mns) * p.Mcomp / mpre * k.Vr / mpost
	if math.Abs(k.Vsy-wantVsy) > 1e-9 || math.Abs(k.Vsys-math.Abs(wantVsy)) > 1e-9 {
		t.Errorf("Vsy = %g (Vsys %g), want %g", k.Vsy, k.Vsys, wantVsy)
	}
	if k.Tilt != 0 {
		t.Errorf("tilt = %g, want 0", k.Tilt)
	}
}

func TestKickDecomposition(t *testing.T) {
	p := Progenitor{Mns: 1.3, Mcomp: 1.3, Mhe: 2.5, Apre: 5, Vkick: 300}
	k := ApplyKick(p, 2.0, 1.0)

	got := math.Sqrt(k.Vkx*k.Vkx + k.Vky*k.Vky + k.Vkz*k.Vkz)
	if math.Abs(got-p.Vkick) > 1e-9 {
		t.Errorf("|Vk| = %g, want %g", got, p.Vkick)
	}
	if math.Abs(k.Vky-p.Vkick*math.Cos(2.0)) > 1e-9 {
		t.Errorf("Vky = %g", k.Vky)
	}
	if math.Abs(k.Apost-8.480530252523376) > 1e-6 {
		t.Errorf("Apost = %g", k.Apost)
	}
	if math.Abs(k.Epost-0.6939845758455333) > 1e-9 {
		t.Errorf("Epost = %g", k.Epost)
	}
}

func TestProgenitorValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Progenitor
		ok   bool
	}{
		{"valid", Progenitor{Mns: 1.3, Mcomp: 1.3, Mhe: 2.5, Apre: 5, Vkick: 0}, true},
		{"zero mass", Progenitor{Mns: 0, Mcomp: 1.3, Mhe: 2.5, Apre: 5}, false},
		{"negative apre", Progenitor{Mns: 1.3, Mcomp: 1.3, Mhe: 2.5, Apre: -1}, false},
		{"negative kick", Progenitor{Mns: 1.3, Mcomp: 1.3, Mhe: 2.5, Apre: 5, Vkick: -3}, false},
		{"nan kick", Progenitor{Mns: 1.3, Mcomp: 1.3, Mhe: 2.5, Apre: 5, Vkick: math.NaN()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
