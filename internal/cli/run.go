package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/domain/lut"
	"github.com/forPelevin/timewarp/internal/pipeline"
)

func newWarpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warp <input>",
		Short: "Render a re-timed copy of a local video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}
	cmd.Flags().String("out", "out", "Output directory")
	cmd.Flags().Float64("fps", 0, "Output frame rate: 0 (variable), 24, 30 or 60")
	cmd.Flags().Bool("no-audio", false, "Drop the audio track")
	cmd.Flags().Bool("captions", false, "Write a speed caption track")
	cmd.Flags().Bool("burn-captions", false, "Burn the caption track into the picture")
	cmd.Flags().Bool("tui", false, "Show an interactive progress view")
	addComponentFlags(cmd)

	// Hidden tuning flag (internal)
	cmd.Flags().Bool("any-rate", false, "Accept any positive frame rate")
	_ = cmd.Flags().MarkHidden("any-rate")
	return cmd
}

func run(cmd *cobra.Command, input string) error {
	outDir, _ := cmd.Flags().GetString("out")
	fps, _ := cmd.Flags().GetFloat64("fps")
	anyRate, _ := cmd.Flags().GetBool("any-rate")
	noAudio, _ := cmd.Flags().GetBool("no-audio")
	captions, _ := cmd.Flags().GetBool("captions")
	burn, _ := cmd.Flags().GetBool("burn-captions")
	useTUI, _ := cmd.Flags().GetBool("tui")

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	tools := toolsFromEnv()
	cs, err := resolveComponents(cmd, tools)
	if err != nil {
		return err
	}
	if len(cs) == 0 {
		logf("no components given, keeping the original timing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Hour)
	defer cancel()

	cfg := pipeline.Config{
		Input:        absIn,
		OutDir:       outDir,
		FrameRate:    fps,
		AnyRate:      anyRate,
		IncludeAudio: !noAudio,
		Components:   cs,
		Captions:     captions || burn,
		BurnCaptions: burn,
		CacheDir:     tools.CacheDir,
		FFmpegPath:   tools.FFmpegPath,
		FFprobePath:  tools.FFprobePath,
		Logf:         logf,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if useTUI {
		return runTUI(ctx, cfg)
	}
	start := time.Now()
	rep, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	m := rep.Manifest
	logf("done in %s: %s -> %s", time.Since(start).Round(time.Millisecond),
		lut.FormatSeconds(m.OriginalSec), lut.FormatSeconds(m.WarpedSec))
	fmt.Fprintln(cmd.OutOrStdout(), rep.RunDir)
	return nil
}

// resolveComponents loads the set named by --components or --preset. Neither
// means the identity warp.
func resolveComponents(cmd *cobra.Command, tools pipeline.Tools) ([]component.Component, error) {
	path, _ := cmd.Flags().GetString("components")
	preset, _ := cmd.Flags().GetString("preset")
	switch {
	case path != "" && preset != "":
		return nil, errors.New("use either --components or --preset")
	case path == "-":
		return pipeline.ReadComponentsFrom(cmd.InOrStdin())
	case path != "":
		return pipeline.LoadComponents(path)
	case preset != "":
		store, err := pipeline.OpenPresets(tools)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(cmd.Context(), preset)
	}
	return nil, nil
}

func toolsFromEnv() pipeline.Tools {
	return pipeline.Tools{
		FFmpegPath:  getenvDefault("TIMEWARP_FFMPEG", "ffmpeg"),
		FFprobePath: getenvDefault("TIMEWARP_FFPROBE", "ffprobe"),
		CacheDir:    getenvDefault("TIMEWARP_CACHE_DIR", ".cache"),
		PresetsDB:   os.Getenv("TIMEWARP_PRESETS_DB"),
		Logf:        logf,
	}
}

func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func sizeOf(path string) string {
	st, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(st.Size()))
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
