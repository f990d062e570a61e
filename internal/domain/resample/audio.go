package resample

import (
	"context"
	"errors"
	"io"
	"math"
)

const DefaultBlockFrames = 4096

// SampleSource reads interleaved 16-bit PCM. n is a multiple of the channel count.
type SampleSource interface {
	ReadSamples(ctx context.Context, dst []int16) (n int, err error)
}

type SampleSink interface {
	AppendSamples(interleaved []int16) error
}

type AudioConfig struct {
	Channels    int
	BlockFrames int
	// TotalFrames is the per-channel source length, used for read progress.
	TotalFrames int64
	OnProgress  func(float64)
	Logf        func(string, ...any)
}

// AudioResampler interpolates each channel at the control indices and writes
// freshly timed interleaved blocks.
type AudioResampler struct {
	machine
	src      SampleSource
	sink     SampleSink
	controls *ControlBuilder
	cfg      AudioConfig

	chans   [][]float64 // de-interleaved source, starting at removed
	removed int64
	readBuf []int16
	eof     bool
	pending []float64

	framesRead    int64
	framesWritten int64
}

func NewAudioResampler(src SampleSource, sink SampleSink, controls *ControlBuilder, cfg AudioConfig) (*AudioResampler, error) {
	if cfg.Channels <= 0 {
		return nil, errors.New("audio resampler: channel count must be positive")
	}
	if cfg.BlockFrames <= 0 {
		cfg.BlockFrames = DefaultBlockFrames
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	return &AudioResampler{
		src:      src,
		sink:     sink,
		controls: controls,
		cfg:      cfg,
		chans:    make([][]float64, cfg.Channels),
		readBuf:  make([]int16, cfg.BlockFrames*cfg.Channels),
	}, nil
}

func (a *AudioResampler) Written() int64 { return a.framesWritten }

func (a *AudioResampler) Step(ctx context.Context) (State, error) {
	if a.state.Terminal() {
		return a.state, nil
	}
	if len(a.pending) == 0 {
		cs, err := a.controls.Next(a.cfg.BlockFrames)
		if errors.Is(err, io.EOF) {
			a.set(Finished)
			return a.state, nil
		}
		if err != nil {
			return a.state, err
		}
		a.pending = cs
	}

	need := int64(math.Floor(a.pending[len(a.pending)-1])) + 2
	if a.removed+a.buffered() < need && !a.eof {
		a.set(Reading)
		return a.state, a.fill(ctx)
	}

	a.set(Writing)
	out, served := a.interpolate(a.pending)
	if served < len(a.pending) {
		a.cfg.Logf("audio: %d control indices past end of source dropped", len(a.pending)-served)
	}
	last := a.pending[max(served-1, 0)]
	a.pending = nil
	if len(out) > 0 {
		if err := a.sink.AppendSamples(out); err != nil {
			return a.state, err
		}
		a.framesWritten += int64(served)
	}
	a.trim(int64(math.Floor(last)))
	if served == 0 && a.eof {
		a.set(Finished)
	}
	return a.state, nil
}

func (a *AudioResampler) buffered() int64 { return int64(len(a.chans[0])) }

func (a *AudioResampler) fill(ctx context.Context) error {
	n, err := a.src.ReadSamples(ctx, a.readBuf)
	ch := a.cfg.Channels
	frames := n / ch
	for i := 0; i < frames; i++ {
		for c := 0; c < ch; c++ {
			a.chans[c] = append(a.chans[c], float64(a.readBuf[i*ch+c]))
		}
	}
	a.framesRead += int64(frames)
	if a.cfg.OnProgress != nil && a.cfg.TotalFrames > 0 {
		a.cfg.OnProgress(clamp01(float64(a.framesRead) / float64(a.cfg.TotalFrames)))
	}
	if errors.Is(err, io.EOF) {
		a.eof = true
		if a.cfg.OnProgress != nil {
			a.cfg.OnProgress(1)
		}
		return nil
	}
	return err
}

// interpolate blends floor and ceil source samples per channel for each
// control index, stopping at the first index the buffer cannot serve.
func (a *AudioResampler) interpolate(controls []float64) ([]int16, int) {
	ch := a.cfg.Channels
	have := a.buffered()
	out := make([]int16, 0, len(controls)*ch)
	served := 0
	for _, c := range controls {
		pos := c - float64(a.removed)
		i0 := int64(math.Floor(pos))
		if i0 < 0 || i0 >= have {
			break
		}
		frac := pos - float64(i0)
		for k := 0; k < ch; k++ {
			v := a.chans[k][i0]
			if i0+1 < have {
				v += (a.chans[k][i0+1] - v) * frac
			}
			out = append(out, toPCM16(v))
		}
		served++
	}
	return out, served
}

// trim drops source samples before index upto; later controls never look back.
func (a *AudioResampler) trim(upto int64) {
	drop := upto - a.removed
	if drop <= 0 {
		return
	}
	drop = min(drop, a.buffered())
	for k := range a.chans {
		a.chans[k] = append(a.chans[k][:0], a.chans[k][drop:]...)
	}
	a.removed += drop
}

func toPCM16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
