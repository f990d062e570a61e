package component

import (
	"errors"
	"fmt"
	"sort"

	"github.com/forPelevin/timewarp/internal/domain/warp"
)

var ErrInvalidParams = errors.New("invalid component parameters")

// Key identifies a component inside a Set. Zero means unassigned.
type Key int

type Component struct {
	Key      Key
	Range    Range
	Factor   float64
	Modifier float64
	Type     warp.Type
}

// New checks bounds the way the editor does before accepting a component.
func New(r Range, factor, modifier float64, typ warp.Type) (Component, error) {
	if !(r.Lo >= 0 && r.Lo < 1 && r.Hi > 0 && r.Hi <= 1) {
		return Component{}, fmt.Errorf("%w: range %s", ErrInvalidParams, r)
	}
	if !warp.ValidParams(factor, modifier) {
		return Component{}, fmt.Errorf("%w: factor %.3g modifier %.3g", ErrInvalidParams, factor, modifier)
	}
	if !typ.Valid() {
		return Component{}, fmt.Errorf("%w: type %d", ErrInvalidParams, int(typ))
	}
	return Component{Range: r, Factor: factor, Modifier: modifier, Type: typ}, nil
}

// Default is the component proposed for a fresh timeline.
func Default() Component {
	return Component{
		Range:    Range{Lo: 0, Hi: 1},
		Factor:   1.5,
		Modifier: 0.5,
		Type:     warp.DoubleSmoothstep,
	}
}

func compliment(r Range) Component {
	return Component{Range: r, Factor: 1, Modifier: 1, Type: warp.ConstantCompliment}
}

func (c Component) IsCompliment() bool { return c.Type == warp.ConstantCompliment }

// Speed evaluates the component at global time t.
func (c Component) Speed(t float64) float64 {
	return warp.Speed(c.Type, c.Range.Unit(t), c.Factor, c.Modifier)
}

// Integral is the warped time accumulated inside the component up to global time t.
func (c Component) Integral(t float64) (float64, bool) {
	v, ok := warp.Integral(c.Type, c.Range.Unit(t), c.Factor, c.Modifier)
	if !ok {
		return 0, false
	}
	return v * c.Range.Len(), true
}

// TimeScale is the warped duration of the whole component.
func (c Component) TimeScale() (float64, bool) { return c.Integral(c.Range.Hi) }

func (c Component) String() string {
	return fmt.Sprintf("%s, %.3g, %.3g, %s", c.Range, c.Factor, c.Modifier, c.Type)
}

func Ranges(cs []Component) []Range {
	out := make([]Range, len(cs))
	for i, c := range cs {
		out[i] = c.Range
	}
	return out
}

// Sort validates ranges and returns components ordered by lower bound.
func Sort(cs []Component) ([]Component, error) {
	if _, err := Validate(Ranges(cs)); err != nil {
		return nil, err
	}
	out := append([]Component(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Lo < out[j].Range.Lo })
	return out, nil
}

// AddConstantCompliments fills every gap with a constant compliment and
// returns the full sorted partition of [0,1].
func AddConstantCompliments(cs []Component) ([]Component, error) {
	sorted, err := Validate(Ranges(cs))
	if err != nil {
		return nil, err
	}
	out := append([]Component(nil), cs...)
	for _, g := range ComplimentOf(sorted) {
		out = append(out, compliment(g))
	}
	return Sort(out)
}

// WithoutCompliments drops synthesized fillers.
func WithoutCompliments(cs []Component) []Component {
	var out []Component
	for _, c := range cs {
		if !c.IsCompliment() {
			out = append(out, c)
		}
	}
	return out
}

// Gaps returns the space still available for new components.
func Gaps(cs []Component) ([]Range, error) {
	sorted, err := Validate(Ranges(WithoutCompliments(cs)))
	if err != nil {
		return nil, err
	}
	return ComplimentOf(sorted), nil
}

// FirstAvailableGap proposes a placement for a new component. ok is false when
// the timeline is fully covered.
func FirstAvailableGap(cs []Component) (Range, bool) {
	gaps, err := Gaps(cs)
	if err != nil || len(gaps) == 0 {
		return Range{}, false
	}
	return gaps[0], true
}

// Sample builds six equal components covering [0,1], one per showcase shape.
func Sample(factor, modifier float64) ([]Component, error) {
	types := []warp.Type{warp.Constant, warp.Triangle, warp.Cosine, warp.TaperedCosine, warp.Power, warp.DoubleSmoothstep}
	d := 1.0 / float64(len(types))
	var out []Component
	for i, typ := range types {
		r := Range{Lo: float64(i) * d, Hi: float64(i+1) * d}
		if i == len(types)-1 {
			r.Hi = 1
		}
		c, err := New(r, factor, modifier, typ)
		if err != nil {
			return nil, err
		}
		c.Key = Key(i + 1)
		out = append(out, c)
	}
	return out, nil
}
