package usecase

import (
	"context"
	"errors"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/domain/lut"
	"github.com/forPelevin/timewarp/internal/domain/plot"
	"github.com/forPelevin/timewarp/internal/domain/remap"
	"github.com/forPelevin/timewarp/internal/ports"
	"github.com/forPelevin/timewarp/internal/types"
)

// DerivedState is everything an editor shows for a component set.
type DerivedState struct {
	Partition      []component.Component
	Compliments    []component.Range
	FirstGap       *component.Range
	WarpedDuration float64
	FPS            float64
}

// Derive recomputes the editor state after a change to the component set.
func Derive(cs []component.Component, info types.MediaInfo) (DerivedState, error) {
	parts, err := component.AddConstantCompliments(cs)
	if err != nil {
		return DerivedState{}, err
	}
	gaps, err := component.Gaps(cs)
	if err != nil {
		return DerivedState{}, err
	}
	st := DerivedState{Partition: parts, Compliments: gaps}
	if len(gaps) > 0 {
		g := gaps[0]
		st.FirstGap = &g
	}
	if info.Duration > 0 {
		st.WarpedDuration, st.FPS, err = remap.ExpectedDuration(cs, info.Duration, info.Video.FrameCount)
		if err != nil {
			return DerivedState{}, err
		}
	}
	return st, nil
}

type DurationReport struct {
	Info           types.MediaInfo
	WarpedDuration float64
	FPS            float64
}

// ExpectedDuration probes the source and reports its duration after warping.
func (u Usecase) ExpectedDuration(ctx context.Context, source string, cs []component.Component) (DurationReport, error) {
	info, err := u.d.Prober.Probe(ctx, source)
	if err != nil {
		return DurationReport{}, err
	}
	sec, fps, err := remap.ExpectedDuration(cs, info.Duration, info.Video.FrameCount)
	if err != nil {
		return DurationReport{}, err
	}
	return DurationReport{Info: info, WarpedDuration: sec, FPS: fps}, nil
}

func Plot(cs []component.Component, opts plot.Options) (plot.Result, error) {
	return plot.Sample(cs, opts)
}

// Lookup maps a warped time to the fraction of the original consumed.
func Lookup(table *lut.Table, warped float64) (float64, bool) {
	if table == nil {
		return 0, false
	}
	return table.Lookup(warped)
}

type PlayPosition struct {
	Warped   float64
	Original float64
	Fraction float64
}

// Play plays a warped track and reports where in the source it is.
func (u Usecase) Play(ctx context.Context, r ports.SampleReader, table *lut.Table, sourceDuration float64, onPosition func(PlayPosition)) error {
	if u.d.Audio == nil {
		return errors.New("no audio engine")
	}
	return u.d.Audio.Play(ctx, r, func(sec float64) {
		if onPosition == nil {
			return
		}
		frac, _ := Lookup(table, sec)
		onPosition(PlayPosition{Warped: sec, Original: frac * sourceDuration, Fraction: frac})
	})
}
