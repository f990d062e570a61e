// Package remap turns a piecewise speed function into cumulative warped time.
package remap

import (
	"errors"
	"fmt"
	"sort"

	"github.com/forPelevin/timewarp/internal/domain/component"
)

var ErrIntegration = errors.New("integration did not converge")

// Integrator maps unit time to accumulated warped time. It is immutable once
// built and safe for concurrent use.
type Integrator struct {
	parts  []component.Component
	prefix []float64 // warped time accumulated before parts[i]
	total  float64
}

// New completes the partition with constant compliments and precomputes the
// time scale of every part.
func New(cs []component.Component) (*Integrator, error) {
	parts, err := component.AddConstantCompliments(cs)
	if err != nil {
		return nil, err
	}
	in := &Integrator{parts: parts, prefix: make([]float64, len(parts))}
	acc := 0.0
	for i, p := range parts {
		in.prefix[i] = acc
		scale, ok := p.TimeScale()
		if !ok {
			return nil, fmt.Errorf("time scale of %s: %w", p, ErrIntegration)
		}
		acc += scale
	}
	in.total = acc
	return in, nil
}

// Parts returns the sorted partition the integrator walks.
func (in *Integrator) Parts() []component.Component {
	return append([]component.Component(nil), in.parts...)
}

// Integrate returns the warped time elapsed at unit time t. t past 1 yields
// the total. ok is false when the containing part fails to integrate.
func (in *Integrator) Integrate(t float64) (float64, bool) {
	if t <= 0 {
		return 0, true
	}
	if t >= 1 {
		return in.total, true
	}
	i := sort.Search(len(in.parts), func(i int) bool { return in.parts[i].Range.Hi >= t })
	if i == len(in.parts) {
		return in.total, true
	}
	v, ok := in.parts[i].Integral(t)
	if !ok {
		return 0, false
	}
	return in.prefix[i] + v, true
}

// Total is the duration scale factor: integrate(1).
func (in *Integrator) Total() float64 { return in.total }

// Speed evaluates the speed multiplier at unit time t.
func (in *Integrator) Speed(t float64) float64 {
	for _, p := range in.parts {
		if p.Range.Contains(t) {
			return p.Speed(t)
		}
	}
	return 0
}

// TimeScale adapts the integrator to seconds of a source of the given duration.
func (in *Integrator) TimeScale(duration float64) func(seconds float64) (float64, bool) {
	return func(seconds float64) (float64, bool) {
		if duration <= 0 {
			return 0, false
		}
		v, ok := in.Integrate(seconds / duration)
		if !ok {
			return 0, false
		}
		return v * duration, true
	}
}

// ExpectedDuration returns the warped duration in seconds and the frame rate
// that keeps every estimated source frame.
func ExpectedDuration(cs []component.Component, sourceDuration float64, frameCount int) (seconds, fps float64, err error) {
	in, err := New(cs)
	if err != nil {
		return 0, 0, err
	}
	seconds = in.Total() * sourceDuration
	if seconds > 0 {
		fps = float64(frameCount) / seconds
	}
	return seconds, fps, nil
}
