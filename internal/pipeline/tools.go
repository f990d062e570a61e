package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/domain/lut"
	"github.com/forPelevin/timewarp/internal/domain/plot"
	"github.com/forPelevin/timewarp/internal/ports"
	"github.com/forPelevin/timewarp/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/timewarp/internal/ports/adapters/oto"
	"github.com/forPelevin/timewarp/internal/ports/adapters/sqlitestore"
	"github.com/forPelevin/timewarp/internal/usecase"
)

// Tools locates the external binaries and local state shared by subcommands.
type Tools struct {
	FFmpegPath  string
	FFprobePath string
	CacheDir    string
	// PresetsDB defaults to <cache>/presets.db.
	PresetsDB string
	Logf      func(format string, args ...any)
}

func (t Tools) logf() func(string, ...any) {
	if t.Logf == nil {
		return func(string, ...any) {}
	}
	return t.Logf
}

func (t Tools) adapter() *ffmpeg.Adapter {
	a := ffmpeg.New(t.FFmpegPath, t.FFprobePath)
	a.Logf = t.logf()
	return a
}

// LoadComponents reads a JSON list of component records.
func LoadComponents(path string) ([]component.Component, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return component.Decode(b)
}

func ExpectedDuration(ctx context.Context, t Tools, input string, cs []component.Component) (usecase.DurationReport, error) {
	uc := usecase.New(usecase.Deps{Prober: t.adapter()})
	return uc.ExpectedDuration(ctx, input, cs)
}

// WritePlot samples the speed curve and writes it as SVG.
func WritePlot(path string, cs []component.Component, opts plot.Options) error {
	r, err := usecase.Plot(cs, opts)
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		return plot.RenderSVG(os.Stdout, r)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := plot.RenderSVG(w, r); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadLUT accepts a lut.json path or a run directory containing one.
func LoadLUT(path string) (*lut.Table, error) {
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		path = filepath.Join(path, "lut.json")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tb lut.Table
	if err := json.Unmarshal(b, &tb); err != nil {
		return nil, fmt.Errorf("parse lut: %w", err)
	}
	return &tb, nil
}

func OpenPresets(t Tools) (ports.PresetStore, error) {
	path := t.PresetsDB
	if path == "" {
		path = filepath.Join(cacheBase(t.CacheDir), "presets.db")
	}
	s, err := sqlitestore.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type PlayConfig struct {
	RunDir     string
	Volume     float64
	OnPosition func(usecase.PlayPosition)
}

// Play extracts the audio of a finished run and plays it, reporting the
// original position through the run's time table.
func Play(ctx context.Context, t Tools, cfg PlayConfig) error {
	m, err := ReadManifest(cfg.RunDir)
	if err != nil {
		return err
	}
	if m.AudioSamples == 0 {
		return errors.New("run has no audio track")
	}
	table, err := LoadLUT(cfg.RunDir)
	if err != nil {
		return err
	}
	workDir := filepath.Join(cacheBase(t.CacheDir), "play", hash(m.Output))
	a := t.adapter()
	r, err := a.OpenAudio(ctx, m.Output, workDir)
	if err != nil {
		return err
	}
	defer r.Close()

	engine := oto.New()
	if cfg.Volume > 0 {
		engine.Volume = cfg.Volume
	}
	uc := usecase.New(usecase.Deps{Audio: engine})
	return uc.Play(ctx, r, table, m.OriginalSec, cfg.OnPosition)
}

// ReadComponentsFrom decodes components from r, used for stdin input.
func ReadComponentsFrom(r io.Reader) ([]component.Component, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return component.Decode(b)
}

// ensure adapters implement ports
var _ ports.Prober = (*ffmpeg.Adapter)(nil)
var _ ports.Demuxer = (*ffmpeg.Adapter)(nil)
var _ ports.Muxer = (*ffmpeg.Adapter)(nil)
var _ ports.AudioEngine = (*oto.Engine)(nil)
var _ ports.PresetStore = (*sqlitestore.Store)(nil)
