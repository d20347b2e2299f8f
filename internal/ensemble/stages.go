// Package ensemble carries a population of tracer systems through the
// supernova, survival, inspiral and galactic-frame stages. Each stage has
// its own record type; later stages embed earlier ones.
package ensemble

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/kicksim/internal/binary"
	"github.com/san-kum/kicksim/internal/orbit"
)

var (
	ErrMixedModes = errors.New("ensemble: samples mix progenitor and direct-Vsys rows")
	ErrNoSource   = errors.New("ensemble: sample has neither progenitor nor direct-Vsys properties")
	ErrEmpty      = errors.New("ensemble: no samples")
)

// Direct holds the properties sampled in direct-Vsys mode, where the kick
// physics is skipped.
type Direct struct {
	Vsys      float64 // km/s
	Tinsp     float64 // Gyr
	SNsurvive bool
}

// Sample is one input row. Exactly one of Progenitor and Direct is set.
// Angles that are NaN are drawn by SampleAngles.
type Sample struct {
	R      float64 // birth radius, kpc
	T0     int     // birth epoch index
	Tbirth float64 // Gyr
	Zbirth float64

	Progenitor *binary.Progenitor
	Direct     *Direct

	SNTheta, SNPhi   float64
	SYSTheta, SYSPhi float64
}

// Unsampled returns angles marked for sampling.
func Unsampled() (snTheta, snPhi, sysTheta, sysPhi float64) {
	n := math.NaN()
	return n, n, n, n
}

type PostKick struct {
	Sample
	Kick binary.Kick
}

type PostSurvival struct {
	PostKick
	Survival binary.Survival
	Tinsp    float64 // Gyr; NaN when disrupted
}

// Tracer is a system ready for orbit integration.
type Tracer struct {
	PostSurvival
	Index int
	Vcirc float64 // pre-SN circular velocity, km/s
	Vesc  float64 // escape velocity at birth, km/s
	Vp    r3.Vec  // post-SN galactic-frame velocity, km/s
	Vpost float64
}

func (t Tracer) Input() orbit.Input {
	return orbit.Input{
		Index:   t.Index,
		T0:      t.T0,
		Survive: t.Survival.Survive,
		Tinsp:   t.Tinsp,
		R:       t.R,
		Vp:      t.Vp,
	}
}

// Mode reports which sampling mode a batch uses.
type Mode int

const (
	ProgenitorMode Mode = iota
	DirectMode
)

func (m Mode) String() string {
	if m == DirectMode {
		return "direct"
	}
	return "progenitor"
}

func DetectMode(samples []Sample) (Mode, error) {
	if len(samples) == 0 {
		return 0, ErrEmpty
	}
	var progenitor, direct int
	for _, s := range samples {
		switch {
		case s.Progenitor != nil && s.Direct == nil:
			progenitor++
		case s.Direct != nil && s.Progenitor == nil:
			direct++
		default:
			return 0, ErrNoSource
		}
	}
	if progenitor > 0 && direct > 0 {
		return 0, ErrMixedModes
	}
	if direct > 0 {
		return DirectMode, nil
	}
	return ProgenitorMode, nil
}
