package oto

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

type memSamples struct {
	data  []int16
	pos   int
	chans int
	fail  error
}

func (m *memSamples) ReadSamples(_ context.Context, dst []int16) (int, error) {
	if m.fail != nil {
		return 0, m.fail
	}
	if m.pos >= len(m.data) {
		return 0, io.EOF
	}
	n := copy(dst, m.data[m.pos:])
	m.pos += n
	return n, nil
}

func (m *memSamples) Channels() int   { return m.chans }
func (m *memSamples) SampleRate() int { return 8000 }
func (m *memSamples) Frames() int64   { return int64(len(m.data) / m.chans) }
func (m *memSamples) Close() error    { return nil }

func TestPCMReader_LittleEndian(t *testing.T) {
	t.Parallel()

	src := &memSamples{data: []int16{1, -1, 256, -32768, 32767, 0}, chans: 2}
	r := newPCMReader(context.Background(), src, 2)
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(b) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(b))
	}
	for i, want := range src.data {
		if got := int16(binary.LittleEndian.Uint16(b[2*i:])); got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
	if r.consumed() != 12 {
		t.Fatalf("consumed %d", r.consumed())
	}
}

func TestPCMReader_SmallReadsAndErrors(t *testing.T) {
	t.Parallel()

	src := &memSamples{data: []int16{10, 20, 30, 40}, chans: 1}
	r := newPCMReader(context.Background(), src, 4)
	p := make([]byte, 3)
	total := 0
	for {
		n, err := r.Read(p)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
	}
	if total != 8 {
		t.Fatalf("read %d bytes, want 8", total)
	}

	boom := errors.New("decode failed")
	bad := newPCMReader(context.Background(), &memSamples{chans: 1, fail: boom}, 4)
	if _, err := bad.Read(p); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF to stop the player, got %v", err)
	}
	if !errors.Is(bad.err(), boom) {
		t.Fatalf("expected source error kept, got %v", bad.err())
	}
}

func TestPCMReader_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newPCMReader(ctx, &memSamples{data: []int16{1, 2}, chans: 1}, 4)
	if n, err := r.Read(make([]byte, 4)); n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after cancel, got %d %v", n, err)
	}
}

func TestPosition(t *testing.T) {
	t.Parallel()

	if got := position(32000, 16000, 32000); got != 0.5 {
		t.Fatalf("position = %v, want 0.5", got)
	}
	if got := position(100, 200, 32000); got != 0 {
		t.Fatalf("position with larger buffer = %v, want 0", got)
	}
}
