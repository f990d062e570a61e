// Package oto plays PCM through the system audio device.
package oto

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	otov3 "github.com/ebitengine/oto/v3"

	"github.com/forPelevin/timewarp/internal/ports"
)

const pollEvery = 100 * time.Millisecond

// Engine owns the process wide oto context. oto allows one context per
// process, so the first Play fixes the device format.
type Engine struct {
	mu     sync.Mutex
	otoCtx *otov3.Context
	rate   int
	chans  int
	Volume float64
}

func New() *Engine { return &Engine{Volume: 1} }

func (e *Engine) open(rate, chans int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.otoCtx != nil {
		if e.rate != rate || e.chans != chans {
			return fmt.Errorf("oto: device opened at %d Hz x %d, cannot play %d Hz x %d", e.rate, e.chans, rate, chans)
		}
		return nil
	}
	op := &otov3.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: chans,
		Format:       otov3.FormatSignedInt16LE,
	}
	c, ready, err := otov3.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready
	e.otoCtx, e.rate, e.chans = c, rate, chans
	return nil
}

// Play blocks until r is drained or ctx is done, reporting the audible
// position in seconds of r's timeline.
func (e *Engine) Play(ctx context.Context, r ports.SampleReader, onPosition func(seconds float64)) error {
	if err := e.open(r.SampleRate(), r.Channels()); err != nil {
		return err
	}
	if onPosition == nil {
		onPosition = func(float64) {}
	}
	pr := newPCMReader(ctx, r, 4096)
	p := e.otoCtx.NewPlayer(pr)
	defer p.Close()
	p.SetVolume(e.Volume)
	p.Play()

	bytesPerSec := float64(2 * r.Channels() * r.SampleRate())
	t := time.NewTicker(pollEvery)
	defer t.Stop()
	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			p.Pause()
			return context.Cause(ctx)
		case <-t.C:
			onPosition(position(pr.consumed(), p.BufferedSize(), bytesPerSec))
		}
	}
	onPosition(position(pr.consumed(), 0, bytesPerSec))
	if err := pr.err(); err != nil {
		return err
	}
	return p.Err()
}

func position(consumed int64, buffered int, bytesPerSec float64) float64 {
	played := consumed - int64(buffered)
	if played < 0 || bytesPerSec <= 0 {
		return 0
	}
	return float64(played) / bytesPerSec
}

// pcmReader adapts a SampleReader to the little endian byte stream oto pulls.
type pcmReader struct {
	ctx     context.Context
	src     ports.SampleReader
	samples []int16
	buf     []byte
	pending []byte
	read    atomic.Int64

	mu      sync.Mutex
	readErr error
}

func newPCMReader(ctx context.Context, src ports.SampleReader, frames int) *pcmReader {
	n := frames * max(src.Channels(), 1)
	return &pcmReader{ctx: ctx, src: src, samples: make([]int16, n), buf: make([]byte, 2*n)}
}

func (r *pcmReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.ctx.Err() != nil {
			return 0, io.EOF
		}
		n, err := r.src.ReadSamples(r.ctx, r.samples)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(r.buf[2*i:], uint16(r.samples[i]))
		}
		r.pending = r.buf[:2*n]
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				r.mu.Lock()
				r.readErr = err
				r.mu.Unlock()
			}
			return 0, io.EOF
		}
	}
	c := copy(p, r.pending)
	r.pending = r.pending[c:]
	r.read.Add(int64(c))
	return c, nil
}

func (r *pcmReader) consumed() int64 { return r.read.Load() }

func (r *pcmReader) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readErr
}

var _ ports.AudioEngine = (*Engine)(nil)
