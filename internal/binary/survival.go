package binary

import (
	"math"

	"github.com/san-kum/kicksim/internal/units"
)

// Survival records the four survival checks. Survive is their conjunction.
type Survival struct {
	Check1  bool // post-SN orbit passes through the pre-SN position
	Check2  bool // orbital contraction/expansion band
	Check3  bool // kick speed bound
	Check4  bool // azimuthal kick direction is real
	Survive bool
}

// CheckSurvival evaluates the survival checks for one system. Comparisons
// against NaN are false, so an unbound orbit fails every check it reaches.
func CheckSurvival(p Progenitor, k Kick) Survival {
	G := units.GKm
	apre := p.Apre * units.RsunToKm
	apost := k.Apost * units.RsunToKm
	mpre := p.Mhe + p.Mcomp
	mpost := p.Mns + p.Mcomp
	ratio := apre / apost
	vk := p.Vkick / k.Vr

	var s Survival
	s.Check1 = 1-k.Epost <= ratio && ratio <= 1+k.Epost

	lo := 2 - mpre/mpost*(vk+1)*(vk+1)
	hi := 2 - mpre/mpost*(vk-1)*(vk-1)
	s.Check2 = ratio < hi && ratio > lo

	bound := math.Sqrt(2 * mpost / mpre)
	s.Check3 = vk < 1+bound && (mpost/mpre > 0.5 || vk > 1-bound)

	// The quadratic is only defined for bound orbits.
	if k.Epost <= 1 {
		s.Check4 = p.Mhe <= maxProgenitorMass(p, k, apre, apost, G)
	}

	s.Survive = s.Check1 && s.Check2 && s.Check3 && s.Check4
	return s
}

// maxProgenitorMass is the upper limit on the exploding core mass for which
// the azimuthal kick angle is real (Fryer & Kalogera 1997, eq. 26).
func maxProgenitorMass(p Progenitor, k Kick, apre, apost, G float64) float64 {
	mpost := p.Mns + p.Mcomp
	q := apost / apre
	oneMinusE2 := 1 - k.Epost*k.Epost

	kv := 2*q - (p.Vkick*p.Vkick*apost/(G*mpost) + 1)
	term1 := kv * kv * mpost / q
	term2 := 2*q*q*oneMinusE2 - kv
	term3 := -2 * q * math.Sqrt(oneMinusE2) * math.Sqrt(q*q*oneMinusE2-kv)
	return -p.Mcomp + term1/(term2+term3)
}

// Evaluate applies the checks to a batch and returns the survival fraction.
// Rows are independent: a row with Epost > 1 never touches the Check 4
// algebra, and the outcome of one row does not depend on any other.
func Evaluate(ps []Progenitor, ks []Kick) ([]Survival, float64) {
	out := make([]Survival, len(ps))
	survived := 0
	for i := range ps {
		out[i] = CheckSurvival(ps[i], ks[i])
		if out[i].Survive {
			survived++
		}
	}
	if len(out) == 0 {
		return out, 0
	}
	return out, float64(survived) / float64(len(out))
}
