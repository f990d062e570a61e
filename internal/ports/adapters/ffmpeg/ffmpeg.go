package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/forPelevin/timewarp/internal/ports"
	"github.com/forPelevin/timewarp/internal/ports/adapters/wavpcm"
	"github.com/forPelevin/timewarp/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	Logf    func(string, ...any)
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, Logf: func(string, ...any) {}}
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
	Tags         struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideData []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

func (a *Adapter) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_streams",
		"-show_format",
		"-of", "json",
		path,
	)
	b, err := cmd.Output()
	if err != nil {
		return types.MediaInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, stderrOf(err))
	}
	return parseProbe(path, b)
}

func parseProbe(path string, b []byte) (types.MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	info := types.MediaInfo{Path: path}
	info.Duration, _ = strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)

	var video *probeStream
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if info.Audio != nil {
				continue
			}
			rate, _ := strconv.Atoi(s.SampleRate)
			if rate > 0 && s.Channels > 0 {
				info.Audio = &types.AudioInfo{SampleRate: rate, Channels: s.Channels, Codec: s.CodecName}
			}
		}
	}
	if video == nil {
		return types.MediaInfo{}, fmt.Errorf("%s: no video stream", path)
	}
	fps := parseRate(video.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(video.RFrameRate)
	}
	if info.Duration <= 0 {
		info.Duration, _ = strconv.ParseFloat(video.Duration, 64)
	}
	count, _ := strconv.Atoi(video.NbFrames)
	if count <= 0 && fps > 0 {
		count = int(math.Round(info.Duration * fps))
	}
	rotation, _ := strconv.Atoi(video.Tags.Rotate)
	if len(video.SideData) > 0 && video.SideData[0].Rotation != 0 {
		rotation = int(video.SideData[0].Rotation)
	}
	info.Video = types.VideoInfo{
		Width:      video.Width,
		Height:     video.Height,
		Rotation:   rotation,
		FrameRate:  fps,
		FrameCount: count,
		Codec:      video.CodecName,
	}
	if info.Duration <= 0 {
		return types.MediaInfo{}, fmt.Errorf("%s: unknown duration", path)
	}
	return info, nil
}

// parseRate reads ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// OpenVideo decodes every frame of the first video stream to a JPEG under
// workDir and pairs it with its presentation time.
func (a *Adapter) OpenVideo(ctx context.Context, path, workDir string) (ports.FrameReader, error) {
	dir := filepath.Join(workDir, "frames")
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", path,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-q:v", "2",
		filepath.Join(dir, "%08d.jpg"),
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg extract frames: %w\n%s", err, string(b))
	}

	cmd = exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "frame=best_effort_timestamp_time",
		"-of", "csv=p=0",
		path,
	)
	b, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe frame times: %w\n%s", err, stderrOf(err))
	}
	pts := parseFrameTimes(b)

	files, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	n := min(len(files), len(pts))
	if n == 0 {
		return nil, fmt.Errorf("%s: no decodable video frames", path)
	}
	if len(files) != len(pts) {
		a.Logf("ffmpeg: %d frame images but %d timestamps, using %d", len(files), len(pts), n)
	}
	return &frameReader{paths: files[:n], pts: pts[:n]}, nil
}

// parseFrameTimes reads one timestamp per line, fills gaps from the previous
// step and shifts the stream to start at zero.
func parseFrameTimes(b []byte) []float64 {
	var out []float64
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.Trim(strings.TrimSpace(sc.Text()), ",")
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			switch n := len(out); {
			case n >= 2:
				v = out[n-1] + (out[n-1] - out[n-2])
			case n == 1:
				v = out[0] + 1.0/30
			default:
				v = 0
			}
		}
		out = append(out, v)
	}
	if len(out) > 0 {
		first := out[0]
		for i := range out {
			out[i] -= first
		}
	}
	return out
}

type frameReader struct {
	paths []string
	pts   []float64
	i     int
}

func (r *frameReader) Next(ctx context.Context) (types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return types.Frame{}, err
	}
	if r.i >= len(r.paths) {
		return types.Frame{}, io.EOF
	}
	f := types.Frame{Index: r.i, PTS: r.pts[r.i], Path: r.paths[r.i]}
	r.i++
	return f, nil
}

func (r *frameReader) Close() error { return nil }

// OpenAudio extracts the first audio stream as 16-bit PCM at its native rate
// and channel layout.
func (a *Adapter) OpenAudio(ctx context.Context, path, workDir string) (ports.SampleReader, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, err
	}
	wav := filepath.Join(workDir, "source.wav")
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", path,
		"-map", "0:a:0",
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		wav,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return wavpcm.Open(wav)
}

func stderrOf(err error) string {
	if ee, ok := err.(*exec.ExitError); ok {
		return string(ee.Stderr)
	}
	return ""
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 6, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	return p
}

var (
	_ ports.Prober  = (*Adapter)(nil)
	_ ports.Demuxer = (*Adapter)(nil)
	_ ports.Muxer   = (*Adapter)(nil)
)
