package resample

import (
	"errors"
	"fmt"
	"io"
)

// ControlBuilder walks source samples in order and yields, for every output
// sample k, the fractional source index whose warped time equals k/sampleRate.
type ControlBuilder struct {
	rate      float64
	count     int64
	timeScale func(seconds float64) (float64, bool)

	j        int64   // next source index to scale
	prev     float64 // warped time of source index j-1
	k        int64   // next output index
	leftover []float64

	OnProgress func(float64)
}

// NewControlBuilder expects the exact per-channel sample count of the source.
func NewControlBuilder(sampleRate int, count int64, timeScale func(float64) (float64, bool)) (*ControlBuilder, error) {
	if sampleRate <= 0 {
		return nil, errors.New("control builder: sample rate must be positive")
	}
	if timeScale == nil {
		return nil, errors.New("control builder: nil time scale")
	}
	b := &ControlBuilder{rate: float64(sampleRate), count: count, timeScale: timeScale, j: 1}
	if count > 0 {
		v, ok := timeScale(0)
		if !ok {
			return nil, fmt.Errorf("%w: at sample 0", ErrControlIndex)
		}
		b.prev = v
	}
	return b, nil
}

// Next returns up to n control indices. Indices produced past n are queued
// and served first on the following call. io.EOF reports exhaustion.
func (b *ControlBuilder) Next(n int) ([]float64, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]float64, 0, n)
	take := min(n, len(b.leftover))
	out = append(out, b.leftover[:take]...)
	b.leftover = b.leftover[take:]

	for len(out) < n && b.j < b.count {
		scaled, ok := b.timeScale(float64(b.j) / b.rate)
		if !ok {
			return out, fmt.Errorf("%w: at sample %d", ErrControlIndex, b.j)
		}
		for {
			tk := float64(b.k) / b.rate
			if tk < b.prev || tk >= scaled {
				break
			}
			c := float64(b.j-1) + (tk-b.prev)/(scaled-b.prev)
			if len(out) < n {
				out = append(out, c)
			} else {
				b.leftover = append(b.leftover, c)
			}
			b.k++
		}
		b.prev = scaled
		b.j++
		if b.OnProgress != nil && (b.j%int64(b.rate) == 0 || b.j == b.count) && b.count > 1 {
			b.OnProgress(clamp01(float64(b.j-1) / float64(b.count-1)))
		}
	}
	if len(out) == 0 {
		return nil, io.EOF
	}
	return out, nil
}

// Produced is the number of control indices generated so far, queued ones included.
func (b *ControlBuilder) Produced() int64 { return b.k }
