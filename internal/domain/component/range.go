package component

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrZeroLength        = errors.New("range has zero length")
	ErrOutOfUnitInterval = errors.New("range is not a subinterval of [0,1]")
	ErrOverlap           = errors.New("ranges overlap")
)

// Range is a closed subinterval [Lo,Hi] of the unit interval.
type Range struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

func (r Range) Len() float64 { return r.Hi - r.Lo }

func (r Range) Contains(t float64) bool { return t >= r.Lo && t <= r.Hi }

// Overlaps reports whether r and o share more than an endpoint.
func (r Range) Overlaps(o Range) bool {
	if r.Hi < o.Lo || o.Hi < r.Lo {
		return false
	}
	if r.Hi == o.Lo || r.Lo == o.Hi {
		return false
	}
	return true
}

// Unit maps a global time in r onto [0,1].
func (r Range) Unit(t float64) float64 { return (t - r.Lo) / (r.Hi - r.Lo) }

func (r Range) String() string { return fmt.Sprintf("%.4g...%.4g", r.Lo, r.Hi) }

// Validate checks ranges and returns a sorted copy. An empty input is valid.
func Validate(ranges []Range) ([]Range, error) {
	for _, r := range ranges {
		if r.Lo == r.Hi {
			return nil, fmt.Errorf("%s: %w", r, ErrZeroLength)
		}
		if r.Lo < 0 || r.Lo > 1 || r.Hi < 0 || r.Hi > 1 || r.Lo > r.Hi {
			return nil, fmt.Errorf("%s: %w", r, ErrOutOfUnitInterval)
		}
	}
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].Overlaps(ranges[j]) {
				return nil, fmt.Errorf("%s and %s: %w", ranges[i], ranges[j], ErrOverlap)
			}
		}
	}
	out := append([]Range(nil), ranges...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Lo < out[j].Lo })
	return out, nil
}

// ComplimentOf returns the gaps of [0,1] not covered by sorted, validated ranges.
// With no ranges the whole interval is one gap.
func ComplimentOf(sorted []Range) []Range {
	if len(sorted) == 0 {
		return []Range{{Lo: 0, Hi: 1}}
	}
	var out []Range
	if sorted[0].Lo > 0 {
		out = append(out, Range{Lo: 0, Hi: sorted[0].Lo})
	}
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].Hi < sorted[i+1].Lo {
			out = append(out, Range{Lo: sorted[i].Hi, Hi: sorted[i+1].Lo})
		}
	}
	if last := sorted[len(sorted)-1]; last.Hi < 1 {
		out = append(out, Range{Lo: last.Hi, Hi: 1})
	}
	return out
}

// FitRange picks the gap a proposed range should snap into: the first gap it
// overlaps, otherwise the first gap. ok is false when no gap remains.
func FitRange(candidate Range, gaps []Range) (Range, bool) {
	if len(gaps) == 0 {
		return Range{}, false
	}
	for _, g := range gaps {
		if candidate.Overlaps(g) {
			return g, true
		}
	}
	return gaps[0], true
}
