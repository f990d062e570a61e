package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/domain/lut"
	"github.com/forPelevin/timewarp/internal/domain/plot"
	"github.com/forPelevin/timewarp/internal/pipeline"
	"github.com/forPelevin/timewarp/internal/ports"
	"github.com/forPelevin/timewarp/internal/types"
	"github.com/forPelevin/timewarp/internal/usecase"
)

func newDurationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duration <input>",
		Short: "Print the original and warped duration of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tools := toolsFromEnv()
			cs, err := resolveComponents(cmd, tools)
			if err != nil {
				return err
			}
			rep, err := pipeline.ExpectedDuration(cmd.Context(), tools, args[0], cs)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "original  %s (%.3fs, %s frames)\n",
				lut.FormatSeconds(rep.Info.Duration), rep.Info.Duration, humanize.Comma(int64(rep.Info.Video.FrameCount)))
			fmt.Fprintf(w, "warped    %s (%.3fs)\n", lut.FormatSeconds(rep.WarpedDuration), rep.WarpedDuration)
			fmt.Fprintf(w, "fps       %.3f\n", rep.FPS)
			return nil
		},
	}
	addComponentFlags(cmd)
	return cmd
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Write the speed curve of a component set as SVG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")
			width, _ := cmd.Flags().GetFloat64("width")
			height, _ := cmd.Flags().GetFloat64("height")
			at, _ := cmd.Flags().GetFloat64("at")
			fit, _ := cmd.Flags().GetBool("fit")
			subs, _ := cmd.Flags().GetInt("subdivisions")

			cs, err := resolveComponents(cmd, toolsFromEnv())
			if err != nil {
				return err
			}
			opts := plot.Options{
				Subdivisions:    subs,
				IndicatorTime:   at,
				IndicatorAtZero: cmd.Flags().Changed("at"),
				Width:           width,
				Height:          height,
				FitInView:       fit,
			}
			if err := pipeline.WritePlot(out, cs, opts); err != nil {
				return err
			}
			if out != "" && out != "-" {
				logf("plot written (%s): %s", sizeOf(out), out)
			}
			return nil
		},
	}
	addComponentFlags(cmd)
	cmd.Flags().String("out", "-", "SVG destination, - for stdout")
	cmd.Flags().Float64("width", 800, "Frame width")
	cmd.Flags().Float64("height", 200, "Frame height")
	cmd.Flags().Float64("at", 0, "Indicator position in [0,1]")
	cmd.Flags().Bool("fit", true, "Stretch the curve to fill the frame")
	cmd.Flags().Int("subdivisions", plot.DefaultSubdivisions, "Samples along the curve")
	return cmd
}

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <run-dir|lut.json> <warped>...",
		Short: "Map warped times back to the original timeline",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asFraction, _ := cmd.Flags().GetBool("fraction")
			source, _ := cmd.Flags().GetFloat64("source-duration")

			table, err := pipeline.LoadLUT(args[0])
			if err != nil {
				return err
			}
			if source <= 0 {
				if m, err := pipeline.ReadManifest(args[0]); err == nil {
					source = m.OriginalSec
				}
			}
			last, ok := table.Last()
			if !ok {
				return fmt.Errorf("empty time table: %s", args[0])
			}

			w := cmd.OutOrStdout()
			for _, a := range args[1:] {
				v, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
				if err != nil {
					return fmt.Errorf("parse %q: %w", a, err)
				}
				warped := v
				if asFraction {
					warped = v * last.Warped
				}
				frac, ok := usecase.Lookup(table, warped)
				if !ok {
					fmt.Fprintf(w, "%.3f\t-\n", warped)
					continue
				}
				if source > 0 {
					fmt.Fprintf(w, "%.3f\t%.6f\t%s\n", warped, frac, lut.FormatSeconds(frac*source))
				} else {
					fmt.Fprintf(w, "%.3f\t%.6f\n", warped, frac)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("fraction", false, "Treat arguments as fractions of the warped duration")
	cmd.Flags().Float64("source-duration", 0, "Original duration in seconds (read from manifest.json when omitted)")
	return cmd
}

func newComponentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "components",
		Short: "Inspect and store component sets",
	}

	sample := &cobra.Command{
		Use:   "sample",
		Short: "Print the sample component set as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			factor, _ := cmd.Flags().GetFloat64("factor")
			modifier, _ := cmd.Flags().GetFloat64("modifier")
			cs, err := component.Sample(factor, modifier)
			if err != nil {
				return fmt.Errorf("sample: %w", err)
			}
			return printComponents(cmd, cs)
		},
	}
	sample.Flags().Float64("factor", 1.5, "Factor of every component")
	sample.Flags().Float64("modifier", 0.5, "Modifier of every component")

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a component file and print the completed partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := pipeline.LoadComponents(args[0])
			if err != nil {
				return err
			}
			var info types.MediaInfo
			if input, _ := cmd.Flags().GetString("input"); input != "" {
				rep, err := pipeline.ExpectedDuration(cmd.Context(), toolsFromEnv(), input, cs)
				if err != nil {
					return err
				}
				info = rep.Info
			}
			st, err := usecase.Derive(cs, info)
			if err != nil {
				return err
			}
			return printDerived(cmd, st)
		},
	}
	validate.Flags().String("input", "", "Video used to report the expected duration")

	save := &cobra.Command{
		Use:   "save <name> <file>",
		Short: "Store a component file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := pipeline.LoadComponents(args[1])
			if err != nil {
				return err
			}
			return withPresets(cmd, func(ctx context.Context, s ports.PresetStore) error {
				if err := s.Save(ctx, args[0], cs); err != nil {
					return err
				}
				logf("saved %q (%d components)", args[0], len(cs))
				return nil
			})
		},
	}

	load := &cobra.Command{
		Use:   "load <name>",
		Short: "Print a stored component set as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPresets(cmd, func(ctx context.Context, s ports.PresetStore) error {
				cs, err := s.Load(ctx, args[0])
				if err != nil {
					return err
				}
				return printComponents(cmd, cs)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored component sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPresets(cmd, func(ctx context.Context, s ports.PresetStore) error {
				presets, err := s.List(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, p := range presets {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Name, len(p.Components), humanize.Time(p.UpdatedAt))
				}
				return tw.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored component set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPresets(cmd, func(ctx context.Context, s ports.PresetStore) error {
				return s.Delete(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(sample, validate, save, load, list, del)
	return cmd
}

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <run-dir>",
		Short: "Play the warped audio of a run with the original timecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, _ := cmd.Flags().GetFloat64("volume")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m, err := pipeline.ReadManifest(args[0])
			if err != nil {
				return err
			}
			total := lut.FormatSeconds(m.OriginalSec)
			w := cmd.ErrOrStderr()
			err = pipeline.Play(ctx, toolsFromEnv(), pipeline.PlayConfig{
				RunDir: args[0],
				Volume: volume,
				OnPosition: func(p usecase.PlayPosition) {
					fmt.Fprintf(w, "\r%s / %s  (warped %s)", lut.FormatSeconds(p.Original), total, lut.FormatSeconds(p.Warped))
				},
			})
			fmt.Fprintln(w)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().Float64("volume", 1, "Playback volume in (0,1]")
	return cmd
}

func printComponents(cmd *cobra.Command, cs []component.Component) error {
	b, err := component.Encode(cs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func printDerived(cmd *cobra.Command, st usecase.DerivedState) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, c := range st.Partition {
		fmt.Fprintf(tw, "%s\t%s\t%.3g\t%.3g\n", c.Range, c.Type, c.Factor, c.Modifier)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if st.FirstGap != nil {
		fmt.Fprintf(w, "first gap %s\n", st.FirstGap)
	} else {
		fmt.Fprintln(w, "timeline fully covered")
	}
	if st.WarpedDuration > 0 {
		fmt.Fprintf(w, "warped %s at %.3f fps\n", lut.FormatSeconds(st.WarpedDuration), st.FPS)
	}
	return nil
}

func withPresets(cmd *cobra.Command, fn func(context.Context, ports.PresetStore) error) error {
	tools := toolsFromEnv()
	store, err := pipeline.OpenPresets(tools)
	if err != nil {
		return fmt.Errorf("open presets %s: %w", presetsPath(tools), err)
	}
	defer store.Close()
	return fn(cmd.Context(), store)
}

func presetsPath(t pipeline.Tools) string {
	if t.PresetsDB != "" {
		return t.PresetsDB
	}
	return filepath.Join(t.CacheDir, "presets.db")
}
