package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/forPelevin/timewarp/internal/ports"
	"github.com/forPelevin/timewarp/internal/ports/adapters/wavpcm"
	"github.com/forPelevin/timewarp/internal/types"
)

const queueSize = 64

var ErrNoFrames = errors.New("no video frames written")

// Create opens an output whose video track is an ffconcat list of frame
// images and whose audio track is a WAV file. Finalize encodes both into path.
func (a *Adapter) Create(ctx context.Context, path string, settings types.OutputSettings, workDir string) (ports.Output, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	listPath := filepath.Join(workDir, "frames.ffconcat")
	lf, err := os.Create(listPath)
	if err != nil {
		return nil, err
	}
	vw := &concatWriter{f: lf, w: bufio.NewWriter(lf), fallback: 1.0 / 30}
	if settings.FrameRate > 0 {
		vw.fallback = 1 / settings.FrameRate
	} else if settings.Video.FrameRate > 0 {
		vw.fallback = 1 / settings.Video.FrameRate
	}
	vw.w.WriteString("ffconcat version 1.0\n")

	o := &output{
		a:        a,
		path:     path,
		settings: settings,
		listPath: listPath,
		concat:   vw,
	}
	o.video = &videoTrack{queue: newQueue(queueSize, func(e frameEntry) error { return vw.add(e) })}

	if settings.Audio != nil {
		o.wavPath = filepath.Join(workDir, "warped.wav")
		ww, err := wavpcm.Create(o.wavPath, settings.Audio.SampleRate, settings.Audio.Channels)
		if err != nil {
			o.video.MarkFinished()
			<-o.video.done
			lf.Close()
			return nil, err
		}
		o.wav = ww
		o.audio = &audioTrack{queue: newQueue(queueSize, ww.Write)}
	}
	return o, nil
}

type output struct {
	a        *Adapter
	path     string
	settings types.OutputSettings
	listPath string
	wavPath  string

	concat *concatWriter
	wav    *wavpcm.Writer
	video  *videoTrack
	audio  *audioTrack

	closeOnce sync.Once
	closeErr  error
}

func (o *output) Video() ports.VideoTrack { return o.video }

func (o *output) Audio() ports.AudioTrack {
	if o.audio == nil {
		return nil
	}
	return o.audio
}

func (o *output) Finalize(ctx context.Context) (string, error) {
	if err := o.video.wait(ctx); err != nil {
		return "", err
	}
	if o.audio != nil {
		if err := o.audio.wait(ctx); err != nil {
			return "", err
		}
	}
	if err := o.video.Err(); err != nil {
		return "", fmt.Errorf("video track: %w", err)
	}
	if o.audio != nil {
		if err := o.audio.Err(); err != nil {
			return "", fmt.Errorf("audio track: %w", err)
		}
	}
	if err := o.close(); err != nil {
		return "", err
	}
	if o.concat.entries == 0 {
		return "", ErrNoFrames
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", o.listPath,
	}
	withAudio := o.wav != nil && o.wav.Frames() > 0
	if withAudio {
		args = append(args, "-i", o.wavPath)
	}
	args = append(args, "-map", "0:v:0")
	if withAudio {
		args = append(args, "-map", "1:a:0")
	}
	if o.settings.BurnCaptions != "" {
		args = append(args, "-vf", "subtitles="+escapeFilterPath(o.settings.BurnCaptions))
	}
	if o.settings.FrameRate > 0 {
		args = append(args, "-r", fmtSeconds(o.settings.FrameRate))
	} else {
		args = append(args, "-fps_mode", "vfr")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
	)
	if withAudio {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}
	args = append(args, o.path)

	cmd := exec.CommandContext(ctx, o.a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(o.path)
		return "", fmt.Errorf("ffmpeg encode: %w\n%s", err, string(b))
	}
	return o.path, nil
}

func (o *output) Abort() error {
	o.video.MarkFinished()
	<-o.video.done
	if o.audio != nil {
		o.audio.MarkFinished()
		<-o.audio.done
	}
	err := o.close()
	if rmErr := os.Remove(o.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

func (o *output) close() error {
	o.closeOnce.Do(func() {
		o.closeErr = o.concat.close()
		if o.wav != nil {
			if err := o.wav.Close(); err != nil && o.closeErr == nil {
				o.closeErr = err
			}
		}
	})
	return o.closeErr
}

type frameEntry struct {
	path string
	at   float64
}

// concatWriter emits one entry per frame. A frame's duration is only known
// once the next frame arrives, so one entry is held back.
type concatWriter struct {
	f        *os.File
	w        *bufio.Writer
	pending  *frameEntry
	lastDur  float64
	fallback float64
	entries  int
}

func (c *concatWriter) add(e frameEntry) error {
	if c.pending != nil {
		d := e.at - c.pending.at
		if d <= 0 {
			return fmt.Errorf("frame at %.6fs does not follow %.6fs", e.at, c.pending.at)
		}
		if err := c.write(*c.pending, d); err != nil {
			return err
		}
		c.lastDur = d
	}
	c.pending = &e
	return nil
}

func (c *concatWriter) write(e frameEntry, dur float64) error {
	abs, err := filepath.Abs(e.path)
	if err != nil {
		return err
	}
	c.entries++
	_, err = fmt.Fprintf(c.w, "file '%s'\nduration %s\n", quoteConcat(abs), fmtSeconds(dur))
	return err
}

func (c *concatWriter) close() error {
	if c.pending != nil {
		dur := c.lastDur
		if dur <= 0 {
			dur = c.fallback
		}
		if err := c.write(*c.pending, dur); err != nil {
			c.f.Close()
			return err
		}
		// the concat demuxer ignores the duration of the final entry unless it is repeated
		abs, _ := filepath.Abs(c.pending.path)
		fmt.Fprintf(c.w, "file '%s'\n", quoteConcat(abs))
		c.pending = nil
	}
	if err := c.w.Flush(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

func quoteConcat(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

type videoTrack struct{ *queue[frameEntry] }

func (t *videoTrack) AppendFrame(f types.Frame, at float64) error {
	return t.push(frameEntry{path: f.Path, at: at})
}

type audioTrack struct{ *queue[[]int16] }

func (t *audioTrack) AppendSamples(s []int16) error {
	return t.push(append([]int16(nil), s...))
}

// queue is a bounded track buffer drained by one writer goroutine. Every
// consumed item raises demand.
type queue[T any] struct {
	items    chan T
	demand   chan struct{}
	finished chan struct{}
	done     chan struct{}
	once     sync.Once
	write    func(T) error

	mu  sync.Mutex
	err error
}

func newQueue[T any](size int, write func(T) error) *queue[T] {
	q := &queue[T]{
		items:    make(chan T, size),
		demand:   make(chan struct{}, 1),
		finished: make(chan struct{}),
		done:     make(chan struct{}),
		write:    write,
	}
	go q.run()
	return q
}

func (q *queue[T]) run() {
	defer close(q.done)
	for {
		select {
		case it := <-q.items:
			q.consume(it)
		case <-q.finished:
			for {
				select {
				case it := <-q.items:
					q.consume(it)
				default:
					return
				}
			}
		}
	}
}

func (q *queue[T]) consume(it T) {
	if q.Err() == nil {
		if err := q.write(it); err != nil {
			q.mu.Lock()
			q.err = err
			q.mu.Unlock()
		}
	}
	select {
	case q.demand <- struct{}{}:
	default:
	}
}

func (q *queue[T]) push(it T) error {
	if err := q.Err(); err != nil {
		return err
	}
	select {
	case <-q.finished:
		return errors.New("append after track finished")
	default:
	}
	q.items <- it
	return nil
}

func (q *queue[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *queue[T]) Demand() <-chan struct{} { return q.demand }

func (q *queue[T]) Ready() bool { return len(q.items) < cap(q.items) }

func (q *queue[T]) MarkFinished() { q.once.Do(func() { close(q.finished) }) }

func (q *queue[T]) wait(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
