package types

import "github.com/forPelevin/timewarp/internal/domain/component"

// Frame is one decoded video frame. PTS is in seconds from the start of the stream.
type Frame struct {
	Index int
	PTS   float64
	Path  string
}

type VideoInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Rotation   int     `json:"rotation"`
	FrameRate  float64 `json:"frame_rate"`
	FrameCount int     `json:"frame_count"`
	Codec      string  `json:"codec"`
}

type AudioInfo struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Codec      string `json:"codec"`
}

type MediaInfo struct {
	Path     string     `json:"path"`
	Duration float64    `json:"duration"`
	Video    VideoInfo  `json:"video"`
	Audio    *AudioInfo `json:"audio,omitempty"`
}

// OutputSettings describes the container the resamplers write into.
// FrameRate 0 keeps the warped source timing.
type OutputSettings struct {
	FrameRate float64
	Video     VideoInfo
	Audio     *AudioInfo
	// ASS file burned into the picture, empty to skip
	BurnCaptions string
}

// Preview is a throttled sample of the video pipeline for display.
type Preview struct {
	Index  int
	Warped float64
	Path   string
}

type Manifest struct {
	RunID          string             `json:"run_id"`
	Input          string             `json:"input"`
	Output         string             `json:"output"`
	FrameRate      float64            `json:"frame_rate"`
	OriginalSec    float64            `json:"original_sec"`
	WarpedSec      float64            `json:"warped_sec"`
	Frames         int                `json:"frames"`
	AudioSamples   int64              `json:"audio_samples"`
	AudioAbandoned bool               `json:"audio_abandoned,omitempty"`
	LUT            string             `json:"lut"`
	Captions       string             `json:"captions,omitempty"`
	Components     []component.Record `json:"components"`
	CreatedAt      string             `json:"created_at"`
}
