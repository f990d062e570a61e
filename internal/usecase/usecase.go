package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/domain/lut"
	"github.com/forPelevin/timewarp/internal/domain/remap"
	"github.com/forPelevin/timewarp/internal/domain/resample"
	"github.com/forPelevin/timewarp/internal/domain/subtitles"
	"github.com/forPelevin/timewarp/internal/ports"
	"github.com/forPelevin/timewarp/internal/types"
)

var (
	ErrCancelled  = errors.New("Cancelled")
	ErrOutOfOrder = errors.New("Out of order")
)

type Deps struct {
	Prober  ports.Prober
	Demuxer ports.Demuxer
	Muxer   ports.Muxer
	Audio   ports.AudioEngine
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type GenerateInput struct {
	// RunID names the run; a fresh uuid is used when empty.
	RunID        string
	Source       string
	Components   []component.Component
	FrameRate    float64
	IncludeAudio bool
	Destination  string
	// WorkDir holds decoded frames and intermediate tracks.
	WorkDir string
	// CaptionsPath receives the speed caption track when set.
	CaptionsPath string
	BurnCaptions bool
	PreviewEvery time.Duration
	Logf         func(format string, args ...any)
}

type Progress struct {
	Fraction float64
	Preview  *types.Preview
}

type Result struct {
	Path           string
	Info           types.MediaInfo
	LUT            *lut.Table
	WarpedDuration float64
	Frames         int
	AudioSamples   int64
	AudioAbandoned bool
	Captions       string
}

// Handle tracks one generation run.
type Handle struct {
	ID     string
	cancel context.CancelCauseFunc
	done   chan struct{}
	res    Result
	err    error
}

// Cancel stops both pipelines; the run completes with ErrCancelled.
func (h *Handle) Cancel() { h.cancel(ErrCancelled) }

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Wait() (Result, error) {
	<-h.done
	return h.res, h.err
}

// Generate starts a run in the background. onComplete is called exactly once,
// before Wait returns, with either a result or one of ErrCancelled,
// ErrOutOfOrder or the container error.
func (u Usecase) Generate(ctx context.Context, in GenerateInput, onProgress func(Progress), onComplete func(Result, error)) *Handle {
	runCtx, cancel := context.WithCancelCause(ctx)
	id := in.RunID
	if id == "" {
		id = uuid.NewString()
	}
	h := &Handle{ID: id, cancel: cancel, done: make(chan struct{})}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	go func() {
		defer close(h.done)
		defer cancel(nil)
		h.res, h.err = u.generate(runCtx, cancel, in, onProgress)
		if onComplete != nil {
			onComplete(h.res, h.err)
		}
	}()
	return h
}

func (u Usecase) generate(ctx context.Context, cancel context.CancelCauseFunc, in GenerateInput, onProgress func(Progress)) (Result, error) {
	logf := in.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if in.WorkDir == "" {
		return Result{}, errors.New("work dir is empty")
	}

	info, err := u.d.Prober.Probe(ctx, in.Source)
	if err != nil {
		return Result{}, terminal(ctx, err)
	}
	integ, err := remap.New(in.Components)
	if err != nil {
		return Result{}, fmt.Errorf("components: %w", err)
	}
	timeScale := integ.TimeScale(info.Duration)
	warpedDur := integ.Total() * info.Duration
	logf("source %.3fs, %d frames; warped %.3fs", info.Duration, info.Video.FrameCount, warpedDur)

	frames, err := u.d.Demuxer.OpenVideo(ctx, in.Source, in.WorkDir)
	if err != nil {
		return Result{}, terminal(ctx, err)
	}
	defer frames.Close()

	var samples ports.SampleReader
	if in.IncludeAudio && info.Audio != nil {
		samples, err = u.d.Demuxer.OpenAudio(ctx, in.Source, in.WorkDir)
		if err != nil {
			return Result{}, terminal(ctx, err)
		}
		defer samples.Close()
	} else if in.IncludeAudio {
		logf("source has no audio track")
	}

	settings := types.OutputSettings{FrameRate: in.FrameRate, Video: info.Video}
	if samples != nil {
		settings.Audio = &types.AudioInfo{SampleRate: samples.SampleRate(), Channels: samples.Channels()}
	}
	if in.BurnCaptions && in.CaptionsPath != "" {
		settings.BurnCaptions = in.CaptionsPath
	}
	out, err := u.d.Muxer.Create(ctx, in.Destination, settings, in.WorkDir)
	if err != nil {
		return Result{}, terminal(ctx, err)
	}

	tracker := newTracker(samples != nil, onProgress)
	video := resample.NewVideoResampler(frames, out.Video(), resample.VideoConfig{
		FrameRate:    in.FrameRate,
		FrameCount:   info.Video.FrameCount,
		End:          warpedDur,
		TimeScale:    timeScale,
		OnProgress:   func(v float64) { tracker.update(partVideo, v) },
		OnPreview:    tracker.preview,
		PreviewEvery: in.PreviewEvery,
		Logf:         logf,
	})

	var (
		wg        sync.WaitGroup
		audio     *resample.AudioResampler
		abandoned bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := resample.Drive(ctx, video, out.Video()); err != nil {
			cancel(classify(err))
		}
	}()
	if samples != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, abandoned = u.runAudio(ctx, cancel, samples, out.Audio(), timeScale, tracker, logf)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		abortOutput(out, logf)
		return Result{}, terminal(ctx, ctx.Err())
	}

	res := Result{
		Info:           info,
		LUT:            video.LUT(),
		WarpedDuration: warpedDur,
		Frames:         video.Written(),
		AudioAbandoned: abandoned,
	}
	if audio != nil {
		res.AudioSamples = audio.Written()
	}
	if in.CaptionsPath != "" {
		ass, err := subtitles.RenderSpeedASS(res.LUT, integ.Speed, info.Duration, warpedDur, subtitles.Options{
			Width:  info.Video.Width,
			Height: info.Video.Height,
		})
		if err == nil {
			err = writeFile(in.CaptionsPath, []byte(ass))
		}
		if err != nil {
			abortOutput(out, logf)
			return Result{}, fmt.Errorf("captions: %w", err)
		}
		res.Captions = in.CaptionsPath
	}

	path, err := out.Finalize(ctx)
	if err != nil {
		abortOutput(out, logf)
		return Result{}, terminal(ctx, err)
	}
	res.Path = path
	tracker.finish()
	return res, nil
}

// runAudio drives the audio pipeline. A control index failure abandons the
// track without failing the run; anything else cancels the sibling.
func (u Usecase) runAudio(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	samples ports.SampleReader,
	track ports.AudioTrack,
	timeScale func(float64) (float64, bool),
	tracker *tracker,
	logf func(string, ...any),
) (*resample.AudioResampler, bool) {
	controls, err := resample.NewControlBuilder(samples.SampleRate(), samples.Frames(), timeScale)
	if err != nil {
		logf("audio abandoned: %v", err)
		track.MarkFinished()
		tracker.fold(partControls, partRead)
		return nil, true
	}
	controls.OnProgress = func(v float64) { tracker.update(partControls, v) }
	audio, err := resample.NewAudioResampler(samples, track, controls, resample.AudioConfig{
		Channels:    samples.Channels(),
		TotalFrames: samples.Frames(),
		OnProgress:  func(v float64) { tracker.update(partRead, v) },
		Logf:        logf,
	})
	if err != nil {
		logf("audio abandoned: %v", err)
		track.MarkFinished()
		tracker.fold(partControls, partRead)
		return nil, true
	}
	err = resample.Drive(ctx, audio, track)
	switch {
	case err == nil:
		return audio, false
	case errors.Is(err, resample.ErrControlIndex):
		logf("audio abandoned after %d samples: %v", audio.Written(), err)
		tracker.fold(partControls, partRead)
		return audio, true
	default:
		cancel(classify(err))
		return audio, false
	}
}

// classify maps pipeline failures onto the reported causes.
func classify(err error) error {
	switch {
	case errors.Is(err, lut.ErrOutOfOrder):
		return ErrOutOfOrder
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	}
	return err
}

// terminal prefers the cancellation cause over the error a blocked call returned.
func terminal(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return classify(context.Cause(ctx))
	}
	return classify(err)
}

func abortOutput(out ports.Output, logf func(string, ...any)) {
	if err := out.Abort(); err != nil {
		logf("abort output: %v", err)
	}
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
