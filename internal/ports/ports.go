package ports

import (
	"context"
	"time"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/types"
)

type Prober interface {
	Probe(ctx context.Context, path string) (types.MediaInfo, error)
}

// FrameReader yields decoded frames in presentation order and io.EOF at the end.
type FrameReader interface {
	Next(ctx context.Context) (types.Frame, error)
	Close() error
}

// SampleReader yields interleaved signed 16-bit PCM and io.EOF at the end.
type SampleReader interface {
	ReadSamples(ctx context.Context, dst []int16) (int, error)
	Channels() int
	SampleRate() int
	// Frames is the exact per-channel sample count.
	Frames() int64
	Close() error
}

// Demuxer opens independent readers over one source, so video and audio can
// be consumed concurrently. workDir holds intermediate files.
type Demuxer interface {
	OpenVideo(ctx context.Context, path, workDir string) (FrameReader, error)
	OpenAudio(ctx context.Context, path, workDir string) (SampleReader, error)
}

// Track is the demand side of an output track. Demand fires whenever queued
// data was consumed; Ready reports whether another append would be accepted
// without blocking.
type Track interface {
	Demand() <-chan struct{}
	Ready() bool
	MarkFinished()
}

type VideoTrack interface {
	Track
	AppendFrame(f types.Frame, at float64) error
}

type AudioTrack interface {
	Track
	AppendSamples(interleaved []int16) error
}

type Output interface {
	Video() VideoTrack
	// Audio is nil when the output has no audio track.
	Audio() AudioTrack
	// Finalize waits for both tracks to be marked finished and writes the container.
	Finalize(ctx context.Context) (string, error)
	// Abort discards everything written so far.
	Abort() error
}

type Muxer interface {
	Create(ctx context.Context, path string, settings types.OutputSettings, workDir string) (Output, error)
}

// AudioEngine plays PCM and reports the playback position in source seconds.
type AudioEngine interface {
	Play(ctx context.Context, r SampleReader, onPosition func(seconds float64)) error
}

type Preset struct {
	Name       string
	Components []component.Component
	UpdatedAt  time.Time
}

type PresetStore interface {
	Save(ctx context.Context, name string, cs []component.Component) error
	Load(ctx context.Context, name string) ([]component.Component, error)
	List(ctx context.Context) ([]Preset, error)
	Delete(ctx context.Context, name string) error
	Close() error
}
