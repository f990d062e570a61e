package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/timewarp/internal/types"
)

func TestParseRate(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"30/1":       30,
		"30000/1001": 30000.0 / 1001,
		"25":         25,
		"0/0":        0,
		"":           0,
		"abc":        0,
	}
	for in, want := range cases {
		if got := parseRate(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("parseRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseProbe(t *testing.T) {
	t.Parallel()

	js := `{
	  "streams": [
	    {"codec_type":"video","codec_name":"h264","width":640,"height":360,"avg_frame_rate":"30/1","r_frame_rate":"30/1","nb_frames":"300",
	     "side_data_list":[{"rotation":-90}]},
	    {"codec_type":"audio","codec_name":"aac","sample_rate":"48000","channels":2}
	  ],
	  "format": {"duration":"10.000000"}
	}`
	info, err := parseProbe("in.mp4", []byte(js))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Duration != 10 || info.Video.FrameCount != 300 || info.Video.FrameRate != 30 {
		t.Fatalf("unexpected video info: %+v", info)
	}
	if info.Video.Rotation != -90 || info.Video.Width != 640 {
		t.Fatalf("unexpected geometry: %+v", info.Video)
	}
	if info.Audio == nil || info.Audio.SampleRate != 48000 || info.Audio.Channels != 2 {
		t.Fatalf("unexpected audio: %+v", info.Audio)
	}

	noCount := `{"streams":[{"codec_type":"video","avg_frame_rate":"25/1"}],"format":{"duration":"4"}}`
	info, err = parseProbe("x", []byte(noCount))
	if err != nil {
		t.Fatal(err)
	}
	if info.Video.FrameCount != 100 || info.Audio != nil {
		t.Fatalf("expected estimated count and no audio, got %+v", info)
	}

	if _, err := parseProbe("x", []byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"4"}}`)); err == nil {
		t.Fatalf("expected error without video")
	}
}

func TestParseFrameTimes(t *testing.T) {
	t.Parallel()

	got := parseFrameTimes([]byte("1.500000\n1.540000,\nN/A\n\n1.620000\n"))
	want := []float64{0, 0.04, 0.08, 0.12}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestConcatWriter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "list.ffconcat")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	c := &concatWriter{f: f, w: bufio.NewWriter(f), fallback: 0.04}
	for _, e := range []frameEntry{{"/a.jpg", 0}, {"/b's.jpg", 0.5}, {"/c.jpg", 0.75}} {
		if err := c.add(e); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := c.add(frameEntry{"/d.jpg", 0.7}); err == nil {
		t.Fatalf("expected non-increasing time to fail")
	}
	if err := c.close(); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	out := string(b)
	for _, want := range []string{
		"file '/a.jpg'\nduration 0.500000\n",
		`file '/b'\''s.jpg'` + "\nduration 0.250000\n",
		"file '/c.jpg'\nduration 0.250000\nfile '/c.jpg'\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if c.entries != 3 {
		t.Fatalf("entries %d", c.entries)
	}
}

func TestQueue_DemandAndDrain(t *testing.T) {
	t.Parallel()

	var got []int
	release := make(chan struct{})
	q := newQueue(2, func(v int) error {
		<-release
		got = append(got, v)
		return nil
	})
	if err := q.push(1); err != nil {
		t.Fatal(err)
	}
	close(release)
	select {
	case <-q.Demand():
	case <-time.After(2 * time.Second):
		t.Fatal("no demand after consume")
	}
	_ = q.push(2)
	_ = q.push(3)
	q.MarkFinished()
	if err := q.wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("expected all items drained in order, got %v", got)
	}
	if err := q.push(4); err == nil {
		t.Fatalf("expected append after finish to fail")
	}
}

func TestQueue_WriteErrorSticks(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	q := newQueue(4, func(int) error { return boom })
	_ = q.push(1)
	q.MarkFinished()
	_ = q.wait(context.Background())
	if !errors.Is(q.Err(), boom) {
		t.Fatalf("expected sticky error, got %v", q.Err())
	}
	if err := q.push(2); !errors.Is(err, boom) {
		t.Fatalf("expected push to report write error, got %v", err)
	}
}

func TestOutput_AbortRemovesResult(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := New("", "")
	dst := filepath.Join(dir, "out", "result.mp4")
	out, err := a.Create(context.Background(), dst, types.OutputSettings{
		Audio: &types.AudioInfo{SampleRate: 8000, Channels: 1},
	}, filepath.Join(dir, "work"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := out.Video().AppendFrame(types.Frame{Path: filepath.Join(dir, "f.jpg")}, 0); err != nil {
		t.Fatal(err)
	}
	if err := out.Audio().AppendSamples(make([]int16, 80)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := out.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial output removed, stat err %v", err)
	}
}

func TestOutput_FinalizeWithoutFrames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out, err := New("", "").Create(context.Background(), filepath.Join(dir, "o.mp4"), types.OutputSettings{}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if out.Audio() != nil {
		t.Fatalf("expected no audio track")
	}
	out.Video().MarkFinished()
	if _, err := out.Finalize(context.Background()); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}
