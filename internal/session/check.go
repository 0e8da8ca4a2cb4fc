package session

import (
	"fmt"

	"github.com/ghalamif/GridBench/internal/domain"
)

const gapFactor = 5

// Report lists integrity warnings found in a loaded session. A session with
// warnings is still usable.
type Report struct {
	Warnings []string `json:"warnings"`
	// FixedInterval is set when frames carry no timestamps and replay has to
	// fall back to a fixed pacing interval.
	FixedInterval bool `json:"fixed_interval"`
}

func (r Report) OK() bool { return len(r.Warnings) == 0 }

// Check flags missing timestamps, timestamps that go backwards and gaps
// larger than five times the mean frame interval.
func Check(s *domain.Session) Report {
	var rep Report
	if s == nil || len(s.Frames) == 0 {
		rep.Warnings = append(rep.Warnings, ErrNoFrames.Error())
		return rep
	}
	for i, f := range s.Frames {
		if f == nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("null frame at index %d", i))
		}
	}
	if !s.Frames[0].Has(domain.KeyTS) {
		rep.Warnings = append(rep.Warnings, "frames missing 'ts' field - using fixed interval mode")
		rep.FixedInterval = true
		return rep
	}

	ts := s.Series(domain.KeyTS, 0)
	for i := 1; i < len(ts); i++ {
		if ts[i] < ts[i-1] {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("non-monotonic timestamp at frame %d", i))
		}
	}

	if len(ts) < 2 {
		return rep
	}
	mean := (ts[len(ts)-1] - ts[0]) / float64(len(ts)-1)
	for i := 1; i < len(ts); i++ {
		if d := ts[i] - ts[i-1]; d > mean*gapFactor {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("large time gap (%.2fs) at frame %d", d, i))
		}
	}
	return rep
}
