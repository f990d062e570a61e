package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/domain/lut"
	"github.com/forPelevin/timewarp/internal/domain/plot"
	"github.com/forPelevin/timewarp/internal/domain/warp"
	"github.com/forPelevin/timewarp/internal/types"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "/tmp/My Cool.Video.mp4", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "my-cool-video-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("my-cool-video-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}
}

func TestRunWorkDir_SeparatesRunsOfSameInput(t *testing.T) {
	t.Parallel()

	a := runWorkDir("cache", "/tmp/in.mp4", "run-a")
	b := runWorkDir("cache", "/tmp/in.mp4", "run-b")
	if a == b {
		t.Fatalf("runs share a work dir: %s", a)
	}
	if filepath.Dir(a) != filepath.Dir(b) || filepath.Dir(a) != filepath.Join("cache", "runs", hash("/tmp/in.mp4")) {
		t.Fatalf("unexpected work dirs: %s %s", a, b)
	}
	if got := runWorkDir("", "x", "r"); !strings.HasPrefix(got, filepath.Join(".cache", "runs")) {
		t.Fatalf("expected default cache base, got %s", got)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	input := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	overlap := []component.Component{
		{Range: component.Range{Lo: 0, Hi: 0.6}, Factor: 1, Modifier: 0.5, Type: warp.Sine},
		{Range: component.Range{Lo: 0.5, Hi: 1}, Factor: 1, Modifier: 0.5, Type: warp.Sine},
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "ok variable rate", cfg: Config{Input: input}},
		{name: "ok 60fps", cfg: Config{Input: input, FrameRate: 60}},
		{name: "custom rate", cfg: Config{Input: input, FrameRate: 25, AnyRate: true}},
		{name: "empty input", cfg: Config{}, wantErr: "input is empty"},
		{name: "missing input", cfg: Config{Input: input + ".nope"}, wantErr: "stat input"},
		{name: "negative rate", cfg: Config{Input: input, FrameRate: -1, AnyRate: true}, wantErr: ">= 0"},
		{name: "rate not offered", cfg: Config{Input: input, FrameRate: 25}, wantErr: "not in"},
		{name: "burn without captions", cfg: Config{Input: input, BurnCaptions: true}, wantErr: "requires captions"},
		{name: "overlap", cfg: Config{Input: input, Components: overlap}, wantErr: "components:"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadLUT_FromRunDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var tb lut.Table
	_ = tb.Append(0, 0)
	_ = tb.Append(4, 2)
	if err := writeJSON(filepath.Join(dir, "lut.json"), &tb); err != nil {
		t.Fatal(err)
	}
	got, err := LoadLUT(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if frac, ok := got.Lookup(2); !ok || frac != 0.5 {
		t.Fatalf("lookup(2) = %v %v", frac, ok)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`[{"warped":2,"original":1},{"warped":1,"original":2}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLUT(filepath.Join(dir, "bad.json")); err == nil {
		t.Fatalf("expected out of order table to be rejected")
	}
}

func TestLoadComponentsAndPlot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sample, err := component.Sample(1.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := component.Encode(sample)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "components.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	cs, err := LoadComponents(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cs) != 6 {
		t.Fatalf("expected 6 components, got %d", len(cs))
	}

	svg := filepath.Join(dir, "plot", "curve.svg")
	if err := WritePlot(svg, cs, plot.Options{Width: 300, Height: 100, IndicatorTime: 0.5}); err != nil {
		t.Fatalf("plot: %v", err)
	}
	out, err := os.ReadFile(svg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "<svg") || strings.Count(string(out), "<polyline") != 6 {
		t.Fatalf("unexpected svg:\n%s", out)
	}
}

func TestReadManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := types.Manifest{RunID: "r1", Output: "o.mp4", WarpedSec: 12.5, Frames: 300}
	if err := writeJSON(filepath.Join(dir, "manifest.json"), want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != want.RunID || got.WarpedSec != want.WarpedSec || got.Frames != want.Frames {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPreviewCopier_KeepsLatest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var frames []string
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%d.jpg", i))
		if err := os.WriteFile(p, []byte(fmt.Sprintf("frame %d", i)), 0o644); err != nil {
			t.Fatal(err)
		}
		frames = append(frames, p)
	}
	dst := filepath.Join(dir, "preview.jpg")
	pc := newPreviewCopier(dst, func(string, ...any) {})
	for i, p := range frames {
		pc.offer(types.Preview{Index: i, Path: p})
	}
	pc.close()
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if string(b) != "frame 4" {
		t.Fatalf("expected the newest preview, got %q", b)
	}
}

func TestOpenPresets_DefaultsUnderCache(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	store, err := OpenPresets(Tools{CacheDir: cache})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	sample, err := component.Sample(2, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(context.Background(), "demo", sample); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cache, "presets.db")); err != nil {
		t.Fatalf("expected presets.db under cache: %v", err)
	}
}
