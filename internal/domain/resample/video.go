package resample

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/forPelevin/timewarp/internal/domain/lut"
	"github.com/forPelevin/timewarp/internal/types"
)

const DefaultPreviewEvery = 300 * time.Millisecond

type FrameSource interface {
	Next(ctx context.Context) (types.Frame, error)
}

// FrameSink takes frames with strictly increasing output times in seconds.
type FrameSink interface {
	AppendFrame(f types.Frame, at float64) error
}

type VideoConfig struct {
	// FrameRate 0 passes every source frame through at its warped time.
	FrameRate  float64
	FrameCount int
	// End is the warped duration. In fixed rate mode the last frame is held until it.
	End float64
	// TimeScale maps source seconds to warped seconds.
	TimeScale func(seconds float64) (float64, bool)

	OnProgress   func(float64)
	OnPreview    func(types.Preview)
	PreviewEvery time.Duration
	Logf         func(string, ...any)
	Now          func() time.Time
}

// VideoResampler rewrites frame timestamps and records the warped/original
// pairs in a LUT owned by the resampler until it finishes.
type VideoResampler struct {
	machine
	src  FrameSource
	sink FrameSink
	cfg  VideoConfig
	lut  lut.Table

	read    int
	written int
	last    float64
	hasLast bool

	// fixed rate
	buffered    *types.Frame
	bufferedAt  float64
	held        *types.Frame
	srcDone     bool
	tick        int
	lastPreview time.Time
}

func NewVideoResampler(src FrameSource, sink FrameSink, cfg VideoConfig) *VideoResampler {
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	if cfg.OnProgress == nil {
		cfg.OnProgress = func(float64) {}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PreviewEvery <= 0 {
		cfg.PreviewEvery = DefaultPreviewEvery
	}
	return &VideoResampler{src: src, sink: sink, cfg: cfg}
}

// LUT is only meaningful once the resampler reached a terminal state.
func (v *VideoResampler) LUT() *lut.Table { return &v.lut }

func (v *VideoResampler) Written() int { return v.written }

func (v *VideoResampler) Step(ctx context.Context) (State, error) {
	if v.state.Terminal() {
		return v.state, nil
	}
	if v.cfg.FrameRate > 0 {
		return v.stepFixed(ctx)
	}
	return v.stepPassThrough(ctx)
}

func (v *VideoResampler) stepPassThrough(ctx context.Context) (State, error) {
	v.set(Reading)
	f, warped, ok, err := v.readNext(ctx)
	if err != nil {
		return v.state, err
	}
	if v.srcDone {
		v.set(Finished)
		return v.state, nil
	}
	if !ok {
		return v.state, nil
	}
	v.set(Writing)
	if err := v.emit(f, warped); err != nil {
		return v.state, err
	}
	return v.state, nil
}

func (v *VideoResampler) stepFixed(ctx context.Context) (State, error) {
	clock := float64(v.tick) / v.cfg.FrameRate
	if v.buffered == nil {
		if v.srcDone {
			if v.held != nil && clock < v.cfg.End && (!v.hasLast || clock > v.last) {
				v.set(Writing)
				if err := v.emit(*v.held, clock); err != nil {
					return v.state, err
				}
				v.tick++
				return v.state, nil
			}
			v.set(Finished)
			return v.state, nil
		}
		v.set(Reading)
		f, warped, ok, err := v.readNext(ctx)
		if err != nil || !ok {
			return v.state, err
		}
		v.buffered, v.bufferedAt = &f, warped
		return v.state, nil
	}

	if clock <= v.bufferedAt {
		v.set(Writing)
		if err := v.emit(*v.buffered, clock); err != nil {
			return v.state, err
		}
		v.tick++
		return v.state, nil
	}
	v.held, v.buffered = v.buffered, nil
	return v.state, nil
}

// readNext reads one source frame and records its warped time. ok is false
// when the frame was skipped or the source ended.
func (v *VideoResampler) readNext(ctx context.Context) (types.Frame, float64, bool, error) {
	f, err := v.src.Next(ctx)
	if errors.Is(err, io.EOF) {
		v.srcDone = true
		return types.Frame{}, 0, false, nil
	}
	if err != nil {
		return types.Frame{}, 0, false, err
	}
	v.read++
	if v.cfg.FrameCount > 0 {
		v.cfg.OnProgress(clamp01(float64(v.read) / float64(v.cfg.FrameCount)))
	}
	warped, ok := v.cfg.TimeScale(f.PTS)
	if !ok {
		v.cfg.Logf("video: frame %d at %.3fs has no warped time, skipped", f.Index, f.PTS)
		return types.Frame{}, 0, false, nil
	}
	if err := v.lut.Append(warped, f.PTS); err != nil {
		return types.Frame{}, 0, false, err
	}
	return f, warped, true, nil
}

func (v *VideoResampler) emit(f types.Frame, at float64) error {
	if v.hasLast && at <= v.last {
		return lut.ErrOutOfOrder
	}
	if err := v.sink.AppendFrame(f, at); err != nil {
		return err
	}
	v.last, v.hasLast = at, true
	v.written++
	if v.cfg.OnPreview != nil {
		now := v.cfg.Now()
		if v.lastPreview.IsZero() || now.Sub(v.lastPreview) >= v.cfg.PreviewEvery {
			v.lastPreview = now
			v.cfg.OnPreview(types.Preview{Index: f.Index, Warped: at, Path: f.Path})
		}
	}
	return nil
}
