package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/kicksim/internal/evolve"
)

// RenderSummary draws the outcome panel printed after a run.
func RenderSummary(runID string, s evolve.Summary, survival, merge float64, wall time.Duration) string {
	var b strings.Builder
	b.WriteString(Title.Render(runID) + "\n\n")

	row := func(label, value string) {
		b.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("systems", fmt.Sprint(s.Systems))
	row("survival fraction", formatFraction(survival))
	row("merge fraction", formatFraction(merge))
	row("median offset", formatKpc(s.MedianOffset))
	row("median proj", formatKpc(s.MedianProjOffset))
	row("wall time", wall.Truncate(time.Millisecond).String())

	names := make([]string, 0, len(s.Outcomes))
	for name := range s.Outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("\n")
	for _, name := range names {
		colour := CurrentTheme.Success
		if name == evolve.FailedOutcome {
			colour = CurrentTheme.Error
		}
		label := lipgloss.NewStyle().Foreground(colour).Width(18).Render(name)
		b.WriteString(label + MetricValue.Render(fmt.Sprint(s.Outcomes[name])) + "\n")
	}

	return Panel.BorderForeground(CurrentTheme.Primary).Render(strings.TrimRight(b.String(), "\n"))
}

func formatFraction(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", f)
}

func formatKpc(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3g kpc", v)
}
