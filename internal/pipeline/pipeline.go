package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/domain/remap"
	"github.com/forPelevin/timewarp/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/timewarp/internal/types"
	"github.com/forPelevin/timewarp/internal/usecase"
)

// FrameRates are the output rates offered without AnyRate. 0 keeps the
// warped source timing.
var FrameRates = []float64{0, 24, 30, 60}

type Config struct {
	Input        string
	OutDir       string
	FrameRate    float64
	AnyRate      bool
	IncludeAudio bool
	Components   []component.Component
	Captions     bool
	BurnCaptions bool
	Logf         func(format string, args ...any)
	// OnProgress receives the combined progress of both pipelines.
	OnProgress func(usecase.Progress)

	// CacheDir is the base directory for decoded frames and intermediate tracks.
	// If empty, defaults to ".cache".
	CacheDir string

	FFmpegPath  string
	FFprobePath string
}

func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.Input); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if err := validateFrameRate(c.FrameRate, c.AnyRate); err != nil {
		return err
	}
	if c.BurnCaptions && !c.Captions {
		return errors.New("burn captions requires captions")
	}
	if _, err := remap.New(c.Components); err != nil {
		return fmt.Errorf("components: %w", err)
	}
	return nil
}

func validateFrameRate(fps float64, anyRate bool) error {
	if fps < 0 {
		return fmt.Errorf("frame rate must be >= 0, got %g", fps)
	}
	if anyRate {
		return nil
	}
	for _, r := range FrameRates {
		if fps == r {
			return nil
		}
	}
	return fmt.Errorf("frame rate %g not in %v (use a custom rate to override)", fps, FrameRates)
}

// Report describes a finished run.
type Report struct {
	RunDir   string
	Manifest types.Manifest
}

func Run(ctx context.Context, cfg Config) (Report, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	v.Logf = logf
	uc := usecase.New(usecase.Deps{Prober: v, Demuxer: v, Muxer: v})

	runID := uuid.NewString()
	cacheDir := runWorkDir(cfg.CacheDir, cfg.Input, runID)
	logf("preparing workspace")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Report{}, err
	}
	logf("cache: %s", cacheDir)

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.Input, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return Report{}, err
	}
	logf("output run dir: %s", runOutDir)

	in := usecase.GenerateInput{
		RunID:        runID,
		Source:       cfg.Input,
		Components:   cfg.Components,
		FrameRate:    cfg.FrameRate,
		IncludeAudio: cfg.IncludeAudio,
		Destination:  filepath.Join(runOutDir, "warped.mp4"),
		WorkDir:      cacheDir,
		BurnCaptions: cfg.BurnCaptions,
		Logf:         logf,
	}
	if cfg.Captions {
		in.CaptionsPath = filepath.Join(runOutDir, "captions", "speed.ass")
	}

	previews := newPreviewCopier(filepath.Join(runOutDir, "preview.jpg"), logf)
	h := uc.Generate(ctx, in, func(p usecase.Progress) {
		if p.Preview != nil {
			previews.offer(*p.Preview)
		}
		if cfg.OnProgress != nil {
			cfg.OnProgress(p)
		}
	}, nil)
	logf("run %s started", h.ID)
	res, err := h.Wait()
	previews.close()
	if err != nil {
		return Report{}, err
	}
	if res.AudioAbandoned {
		logf("audio track abandoned after %s samples", humanize.Comma(res.AudioSamples))
	}

	lutPath := filepath.Join(runOutDir, "lut.json")
	if err := writeJSON(lutPath, res.LUT); err != nil {
		return Report{}, fmt.Errorf("write lut: %w", err)
	}

	recs, err := component.ToRecords(cfg.Components)
	if err != nil {
		return Report{}, err
	}
	m := types.Manifest{
		RunID:          h.ID,
		Input:          cfg.Input,
		Output:         res.Path,
		FrameRate:      cfg.FrameRate,
		OriginalSec:    res.Info.Duration,
		WarpedSec:      res.WarpedDuration,
		Frames:         res.Frames,
		AudioSamples:   res.AudioSamples,
		AudioAbandoned: res.AudioAbandoned,
		LUT:            lutPath,
		Captions:       res.Captions,
		Components:     recs,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := writeJSON(manifestPath, m); err != nil {
		return Report{}, fmt.Errorf("write manifest: %w", err)
	}

	size := "?"
	if st, err := os.Stat(res.Path); err == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}
	logf("output written (%s, %s frames, %s audio samples): %s",
		size, humanize.Comma(int64(res.Frames)), humanize.Comma(res.AudioSamples), res.Path)
	logf("manifest written: %s", manifestPath)
	return Report{RunDir: runOutDir, Manifest: m}, nil
}

// ReadManifest loads the manifest of a finished run directory.
func ReadManifest(runDir string) (types.Manifest, error) {
	var m types.Manifest
	b, err := os.ReadFile(filepath.Join(runDir, "manifest.json"))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// previewCopier keeps the latest preview frame in the run directory. Copies
// happen off the pipeline goroutines; a newer preview replaces one not yet
// copied.
type previewCopier struct {
	dst  string
	logf func(string, ...any)
	ch   chan types.Preview
	wg   sync.WaitGroup
}

func newPreviewCopier(dst string, logf func(string, ...any)) *previewCopier {
	p := &previewCopier{dst: dst, logf: logf, ch: make(chan types.Preview, 1)}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for pv := range p.ch {
			if err := copyFile(pv.Path, p.dst); err != nil {
				p.logf("preview %d: %v", pv.Index, err)
			}
		}
	}()
	return p
}

func (p *previewCopier) offer(pv types.Preview) {
	if pv.Path == "" {
		return
	}
	for {
		select {
		case p.ch <- pv:
			return
		default:
		}
		select {
		case <-p.ch:
		default:
		}
	}
}

func (p *previewCopier) close() {
	close(p.ch)
	p.wg.Wait()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func cacheBase(dir string) string {
	if dir == "" {
		return ".cache"
	}
	return dir
}

// runWorkDir keeps intermediates of concurrent runs over the same input apart.
func runWorkDir(cacheDir, input, runID string) string {
	return filepath.Join(cacheBase(cacheDir), "runs", hash(input), runID)
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
