// Package plot samples the speed curve of a component partition into pixel space.
package plot

import (
	"errors"
	"fmt"
	"math"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/domain/warp"
)

const DefaultSubdivisions = 2000

var ErrEmptyFrame = errors.New("plot frame must have positive size")

type Point struct {
	X, Y float64
}

// Rect is the drawing area inside the frame, origin at the top-left.
type Rect struct {
	X, Y, W, H float64
}

type Options struct {
	Subdivisions    int
	IndicatorTime   float64
	IndicatorAtZero bool
	Width, Height   float64
	FitInView       bool
}

// Segment is the part of the polyline drawn for one component.
type Segment struct {
	Key        component.Key
	Type       warp.Type
	Selectable bool
	Points     []Point
	// pixel x extent of the component
	MinX, MaxX float64
}

type Result struct {
	Segments  []Segment
	MinY      float64
	MaxY      float64
	Polyline  []Point
	Indicator *Point
	Rect      Rect
	Width     float64
	Height    float64
}

// Sample completes the partition with compliments, samples speed(t) at
// Subdivisions+1 evenly spaced points and maps them into the frame.
func Sample(cs []component.Component, opts Options) (Result, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return Result{}, fmt.Errorf("%w: %gx%g", ErrEmptyFrame, opts.Width, opts.Height)
	}
	parts, err := component.AddConstantCompliments(cs)
	if err != nil {
		return Result{}, err
	}
	n := opts.Subdivisions
	if n <= 0 {
		n = DefaultSubdivisions
	}

	speedAt := func(t float64) float64 {
		for _, p := range parts {
			if p.Range.Contains(t) {
				return p.Speed(t)
			}
		}
		return 0
	}

	xs := make([]float64, n+1)
	ys := make([]float64, n+1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		y := speedAt(t)
		xs[i], ys[i] = t, y
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}

	rect := fitRect(1, maxY-minY, opts.Width, opts.Height, opts.FitInView)
	m := mapper{minX: 0, maxX: 1, minY: minY, maxY: maxY, rect: rect, frameH: opts.Height}

	res := Result{
		MinY:     minY,
		MaxY:     maxY,
		Polyline: make([]Point, len(xs)),
		Rect:     rect,
		Width:    opts.Width,
		Height:   opts.Height,
	}
	for i := range xs {
		res.Polyline[i] = Point{X: m.tx(xs[i]), Y: m.ty(ys[i])}
	}

	for _, p := range parts {
		seg := Segment{
			Key:        p.Key,
			Type:       p.Type,
			Selectable: !p.IsCompliment(),
			MinX:       m.tx(p.Range.Lo),
			MaxX:       m.tx(p.Range.Hi),
		}
		for _, pt := range res.Polyline {
			if pt.X >= seg.MinX && pt.X <= seg.MaxX {
				seg.Points = append(seg.Points, pt)
			}
		}
		res.Segments = append(res.Segments, seg)
	}

	t := opts.IndicatorTime
	if t > 0 || (t == 0 && opts.IndicatorAtZero) {
		if t > 1 {
			t = 1
		}
		res.Indicator = &Point{X: m.tx(t), Y: m.ty(speedAt(t))}
	}
	return res, nil
}

// fitRect centers an aspect preserving rectangle in the frame unless stretch is set.
// A stretched flat curve runs along the top edge; otherwise it collapses to a
// horizontal line through the middle.
func fitRect(aw, ah, w, h float64, stretch bool) Rect {
	if stretch {
		return Rect{X: 0, Y: 0, W: w, H: h}
	}
	if ah <= 0 {
		return Rect{X: 0, Y: h / 2, W: w, H: 0}
	}
	scale := math.Min(w/aw, h/ah)
	rw, rh := aw*scale, ah*scale
	return Rect{X: (w - rw) / 2, Y: (h - rh) / 2, W: rw, H: rh}
}

type mapper struct {
	minX, maxX float64
	minY, maxY float64
	rect       Rect
	frameH     float64
}

func (m mapper) tx(x float64) float64 {
	if m.maxX == m.minX {
		return m.rect.X + m.rect.W
	}
	return m.rect.X + m.rect.W*(x-m.minX)/(m.maxX-m.minX)
}

// ty flips the y axis so larger speeds are drawn higher.
func (m mapper) ty(y float64) float64 {
	if m.maxY == m.minY {
		return m.frameH - (m.rect.Y + m.rect.H)
	}
	return m.frameH - (m.rect.Y + m.rect.H*(y-m.minY)/(m.maxY-m.minY))
}
