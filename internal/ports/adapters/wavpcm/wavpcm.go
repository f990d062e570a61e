// Package wavpcm reads and writes interleaved 16-bit PCM WAV files.
package wavpcm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/forPelevin/timewarp/internal/ports"
)

type Reader struct {
	f      *os.File
	dec    *wav.Decoder
	buf    *audio.IntBuffer
	chans  int
	rate   int
	frames int64
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("wav %s: %w", path, err)
	}
	format := dec.Format()
	if dec.SampleBitDepth() != 16 {
		f.Close()
		return nil, fmt.Errorf("wav %s: want 16-bit PCM, got %d", path, dec.SampleBitDepth())
	}
	if format.NumChannels <= 0 {
		f.Close()
		return nil, fmt.Errorf("wav %s: no channels", path)
	}
	return &Reader{
		f:      f,
		dec:    dec,
		chans:  format.NumChannels,
		rate:   format.SampleRate,
		frames: dec.PCMLen() / int64(2*format.NumChannels),
		buf:    &audio.IntBuffer{Format: format, SourceBitDepth: 16},
	}, nil
}

func (r *Reader) Channels() int   { return r.chans }
func (r *Reader) SampleRate() int { return r.rate }
func (r *Reader) Frames() int64   { return r.frames }

// ReadSamples fills dst with whole frames and returns io.EOF once drained.
func (r *Reader) ReadSamples(ctx context.Context, dst []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	want := len(dst) - len(dst)%r.chans
	if want == 0 {
		return 0, errors.New("wavpcm: buffer smaller than one frame")
	}
	if cap(r.buf.Data) < want {
		r.buf.Data = make([]int, want)
	}
	r.buf.Data = r.buf.Data[:want]
	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("wav read: %w", err)
	}
	n -= n % r.chans
	for i := 0; i < n; i++ {
		dst[i] = int16(r.buf.Data[i])
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *Reader) Close() error { return r.f.Close() }

type Writer struct {
	f      *os.File
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	chans  int
	frames int64
}

func Create(path string, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wavpcm: invalid format %d Hz x %d", sampleRate, channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{
		f:     f,
		enc:   wav.NewEncoder(f, sampleRate, 16, channels, 1),
		chans: channels,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (w *Writer) Write(interleaved []int16) error {
	if len(interleaved)%w.chans != 0 {
		return fmt.Errorf("wavpcm: %d samples is not a whole number of %d-channel frames", len(interleaved), w.chans)
	}
	if cap(w.buf.Data) < len(interleaved) {
		w.buf.Data = make([]int, len(interleaved))
	}
	w.buf.Data = w.buf.Data[:len(interleaved)]
	for i, s := range interleaved {
		w.buf.Data[i] = int(s)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	w.frames += int64(len(interleaved) / w.chans)
	return nil
}

func (w *Writer) Frames() int64 { return w.frames }

// Close finalizes the header and closes the file.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("wav finalize: %w", err)
	}
	return w.f.Close()
}

var _ ports.SampleReader = (*Reader)(nil)
