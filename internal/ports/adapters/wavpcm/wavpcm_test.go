package wavpcm

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestWriterReader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	w, err := Create(path, 8000, 2)
	if err != nil {
		t.Fatal(err)
	}
	var want []int16
	for i := 0; i < 1000; i++ {
		want = append(want, int16(i*30), int16(-i*30))
	}
	if err := w.Write(want[:600]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(want[600:]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write([]int16{1}); err == nil {
		t.Fatalf("expected partial frame to be rejected")
	}
	if w.Frames() != 1000 {
		t.Fatalf("frames written %d", w.Frames())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	if r.Channels() != 2 || r.SampleRate() != 8000 || r.Frames() != 1000 {
		t.Fatalf("format %d ch %d Hz %d frames", r.Channels(), r.SampleRate(), r.Frames())
	}
	var got []int16
	buf := make([]int16, 333) // odd size: reads are trimmed to whole frames
	for {
		n, err := r.ReadSamples(context.Background(), buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if n%2 != 0 {
			t.Fatalf("read %d samples, not whole frames", n)
		}
		got = append(got, buf[:n]...)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReadSamples_Cancelled(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mono.wav")
	w, err := Create(path, 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(make([]int16, 160)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.ReadSamples(ctx, make([]int16, 16)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpen_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := Open(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Create(filepath.Join(t.TempDir(), "x.wav"), 0, 2); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}
