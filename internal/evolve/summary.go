package evolve

import (
	"math"
	"sort"
)

// FailedOutcome labels failed systems in summaries and tables.
const FailedOutcome = "failed"

// Summary counts outcomes over a finished run.
type Summary struct {
	Systems  int            `json:"systems"`
	Outcomes map[string]int `json:"outcomes"`
	Failed   int            `json:"failed"`
	Merged   int            `json:"merged"`

	// Median offsets over systems that finished with a finite offset.
	MedianOffset     float64 `json:"median_offset_kpc"`
	MedianProjOffset float64 `json:"median_proj_offset_kpc"`
}

// OutcomeLabel is the table label of a result.
func (r Result) OutcomeLabel() string {
	if r.Failed() {
		return FailedOutcome
	}
	return r.Outcome.State.String()
}

func Summarize(results []Result) Summary {
	s := Summary{Systems: len(results), Outcomes: make(map[string]int)}
	var offs, proj []float64
	for _, r := range results {
		s.Outcomes[r.OutcomeLabel()]++
		if r.Failed() {
			s.Failed++
			continue
		}
		if r.Outcome.Merged {
			s.Merged++
		}
		if !math.IsNaN(r.Outcome.ROffset) {
			offs = append(offs, r.Outcome.ROffset)
			proj = append(proj, r.Outcome.RProjOffset)
		}
	}
	s.MedianOffset = median(offs)
	s.MedianProjOffset = median(proj)
	return s
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}
