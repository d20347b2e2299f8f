package ensemble

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/san-kum/kicksim/internal/binary"
	"github.com/san-kum/kicksim/internal/galaxy"
	"github.com/san-kum/kicksim/internal/units"
)

// DefaultTinspMax is the merge-within threshold in Gyr, roughly a Hubble time.
const DefaultTinspMax = 14.0

// RsunToAU converts post-SN separations for the Peters calculation.
const RsunToAU = units.RsunToKm / units.AUToKm

// Env is what the frame stage needs from the galaxy model.
type Env struct {
	History    *galaxy.History
	Mode       galaxy.Mode
	FixedEpoch int
	TinspMax   float64
	Logger     *slog.Logger
}

// Ensemble is the prepared population and its summary fractions.
type Ensemble struct {
	Mode             Mode
	Tracers          []Tracer
	SurvivalFraction float64
	MergeFraction    float64
}

// Prepare runs every pre-integration stage. rng is used only for angles
// the samples leave unset.
func Prepare(samples []Sample, env Env, rng *rand.Rand) (*Ensemble, error) {
	mode, err := DetectMode(samples)
	if err != nil {
		return nil, err
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.TinspMax == 0 {
		env.TinspMax = DefaultTinspMax
	}

	rows := make([]Sample, len(samples))
	copy(rows, samples)
	SampleAngles(rows, rng)

	ens := &Ensemble{Mode: mode}
	var survived []PostSurvival
	switch mode {
	case ProgenitorMode:
		kicked, err := ApplyKicks(rows)
		if err != nil {
			return nil, err
		}
		survived, ens.SurvivalFraction = Survive(kicked)
		ens.MergeFraction = InspiralTimes(survived, env.TinspMax, env.Logger)
	case DirectMode:
		survived, ens.SurvivalFraction, ens.MergeFraction = passThrough(rows, env.TinspMax)
	}

	ens.Tracers, err = Frame(survived, mode, env)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("ensemble prepared",
		"systems", len(ens.Tracers),
		"mode", mode.String(),
		"survival_fraction", ens.SurvivalFraction,
		"merge_fraction", ens.MergeFraction,
	)
	return ens, nil
}

// ApplyKicks validates every progenitor and applies its natal kick.
func ApplyKicks(samples []Sample) ([]PostKick, error) {
	out := make([]PostKick, len(samples))
	var errs []error
	for i, s := range samples {
		if s.Progenitor == nil {
			errs = append(errs, fmt.Errorf("sample %d: %w", i, ErrNoSource))
			continue
		}
		if err := s.Progenitor.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sample %d: %w", i, err))
			continue
		}
		out[i] = PostKick{Sample: s, Kick: binary.ApplyKick(*s.Progenitor, s.SNTheta, s.SNPhi)}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Survive classifies each kicked system and returns the survival fraction.
func Survive(kicked []PostKick) ([]PostSurvival, float64) {
	out := make([]PostSurvival, len(kicked))
	var n int
	for i, k := range kicked {
		sv := binary.CheckSurvival(*k.Progenitor, k.Kick)
		if sv.Survive {
			n++
		}
		out[i] = PostSurvival{PostKick: k, Survival: sv, Tinsp: math.NaN()}
	}
	if len(out) == 0 {
		return out, 0
	}
	return out, float64(n) / float64(len(out))
}

// InspiralTimes fills Tinsp for survivors and returns the fraction of
// survivors merging within tinspMax. Calculation failures are logged and
// leave a zero inspiral time.
func InspiralTimes(rows []PostSurvival, tinspMax float64, logger *slog.Logger) float64 {
	var survivors, within int
	for i := range rows {
		r := &rows[i]
		if !r.Survival.Survive {
			r.Tinsp = math.NaN()
			continue
		}
		survivors++
		p := r.Progenitor
		t, err := binary.InspiralTime(r.Kick.Apost*RsunToAU, r.Kick.Epost, p.Mcomp, p.Mns)
		if err != nil {
			logger.Warn("inspiral time failed", "sample", i, "apost", r.Kick.Apost, "epost", r.Kick.Epost, "error", err)
			t = 0
		}
		r.Tinsp = t
		if t < tinspMax {
			within++
		}
	}
	if survivors == 0 {
		return 0
	}
	return float64(within) / float64(survivors)
}

// passThrough builds the post-survival stage for direct-Vsys samples.
func passThrough(samples []Sample, tinspMax float64) ([]PostSurvival, float64, float64) {
	out := make([]PostSurvival, len(samples))
	var survivors, within int
	for i, s := range samples {
		d := s.Direct
		n := math.NaN()
		out[i] = PostSurvival{
			PostKick: PostKick{Sample: s, Kick: binary.Kick{
				Vkx: n, Vky: n, Vkz: n, Vr: n, Apost: n, Epost: n,
				Vsx: n, Vsy: n, Vsz: n, Vsys: d.Vsys, Tilt: n,
			}},
			Survival: binary.Survival{Survive: d.SNsurvive},
			Tinsp:    d.Tinsp,
		}
		if d.SNsurvive {
			survivors++
			if d.Tinsp < tinspMax {
				within++
			}
		}
	}
	if len(out) == 0 {
		return out, 0, 0
	}
	merge := 0.0
	if survivors > 0 {
		merge = float64(within) / float64(survivors)
	}
	return out, float64(survivors) / float64(len(out)), merge
}

// Frame computes the circular and escape velocities at birth and the
// galactic-frame post-SN velocity of every row. A missing birth time is
// taken from the birth epoch. The circular velocity uses
// the potential the orbit will be integrated in; the escape velocity always
// uses the birth epoch.
func Frame(rows []PostSurvival, mode Mode, env Env) ([]Tracer, error) {
	out := make([]Tracer, len(rows))
	for i, r := range rows {
		circ, err := env.History.PotentialAt(env.Mode, r.T0, env.FixedEpoch)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		birth, err := env.History.PotentialAt(galaxy.Evolving, r.T0, 0)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}

		if math.IsNaN(r.Tbirth) {
			r.Tbirth = env.History.Times[r.T0]
			r.Zbirth = env.History.Redz[r.T0]
		}
		t := Tracer{
			PostSurvival: r,
			Index:        i,
			Vcirc:        galaxy.Vcirc(circ, r.R),
			Vesc:         galaxy.EscapeVelocity(birth, r.R, 0),
		}
		if mode == DirectMode {
			t.Vp, t.Vpost = DecomposeVsys(r.Direct.Vsys, r.SYSTheta, r.SYSPhi, t.Vcirc)
		} else {
			t.Vp, t.Vpost = GalacticVelocity(r.Kick, r.Survival.Survive, r.SYSTheta, r.SYSPhi, t.Vcirc)
		}
		out[i] = t
	}
	return out, nil
}
