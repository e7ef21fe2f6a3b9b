package scanrun

import (
	"fmt"
	"sort"
)

const (
	PhasePaused   = "Paused"
	PhaseComplete = "Scan complete!"
)

// Phase labels every progress value below Until that no earlier band covers.
type Phase struct {
	Until float64
	Label string
}

// PhaseTable maps cumulative progress to the label shown to the operator.
type PhaseTable []Phase

func DefaultPhases() PhaseTable {
	return PhaseTable{
		{Until: 10, Label: "Initializing sensors…"},
		{Until: 25, Label: "Calibrating thermal camera…"},
		{Until: 40, Label: "Scanning quadrant 1/4…"},
		{Until: 55, Label: "Scanning quadrant 2/4…"},
		{Until: 70, Label: "Scanning quadrant 3/4…"},
		{Until: 85, Label: "Scanning quadrant 4/4…"},
		{Until: 95, Label: "Processing data…"},
		{Until: 100, Label: "Finalizing report…"},
	}
}

func (t PhaseTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("phase table is empty")
	}
	if !sort.SliceIsSorted(t, func(i, j int) bool { return t[i].Until < t[j].Until }) {
		return fmt.Errorf("phase table bands must be in ascending order")
	}
	if last := t[len(t)-1].Until; last < 100 {
		return fmt.Errorf("phase table ends at %.1f, must cover up to 100", last)
	}
	return nil
}

// Label returns the band for progress. Progress at or past 100 is complete.
func (t PhaseTable) Label(progress float64) string {
	if progress >= 100 {
		return PhaseComplete
	}
	for _, p := range t {
		if progress < p.Until {
			return p.Label
		}
	}
	return t[len(t)-1].Label
}
