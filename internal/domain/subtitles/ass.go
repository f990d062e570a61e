package subtitles

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forPelevin/timewarp/internal/domain/lut"
)

// SpeedFunc returns the speed multiplier at unit source time.
type SpeedFunc func(unit float64) float64

type Options struct {
	// Step between events on the warped timeline, one second when zero.
	Step   time.Duration
	Width  int
	Height int
	// Label is prefixed to every line when set.
	Label string
}

// RenderSpeedASS writes one event per step of the warped timeline showing the
// speed and the original timecode the output is currently playing.
func RenderSpeedASS(table *lut.Table, speed SpeedFunc, sourceDur, warpedDur float64, opts Options) (string, error) {
	if table == nil || table.Len() == 0 {
		return "", errors.New("captions: empty time table")
	}
	if sourceDur <= 0 || warpedDur <= 0 {
		return "", fmt.Errorf("captions: invalid durations %.3f/%.3f", sourceDur, warpedDur)
	}
	step := opts.Step
	if step <= 0 {
		step = time.Second
	}

	var b strings.Builder
	b.WriteString(assHeader(opts.Width, opts.Height))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	end := dur(warpedDur)
	for start := time.Duration(0); start < end; start += step {
		stop := min(start+step, end)
		frac, ok := table.Lookup(start.Seconds())
		if !ok {
			continue
		}
		text := fmt.Sprintf("%.2fx  %s / %s", speed(frac), lut.FormatSeconds(frac*sourceDur), lut.FormatSeconds(sourceDur))
		if opts.Label != "" {
			text = opts.Label + "  " + text
		}
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(start))
		b.WriteString(",")
		b.WriteString(assTime(stop))
		b.WriteString(",Warp,,0,0,0,,")
		b.WriteString(sanitizeASS(text))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func assHeader(w, h int) string {
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	size := int(math.Max(18, math.Round(float64(h)/24)))
	return strings.TrimSpace(fmt.Sprintf(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Warp, DejaVu Sans Mono, %d, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,3,1,1, 40,40,30,1
`, w, h, size))
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
