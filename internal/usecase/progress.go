package usecase

import (
	"sync"

	"github.com/forPelevin/timewarp/internal/types"
)

const (
	partVideo    = "video"
	partControls = "audio.controls"
	partRead     = "audio.read"
)

// tracker folds per pipeline progress into one non-decreasing fraction.
// Both pipelines call it from their own goroutines.
type tracker struct {
	mu     sync.Mutex
	parts  map[string]float64
	weight float64
	last   float64
	emit   func(Progress)
}

func newTracker(withAudio bool, emit func(Progress)) *tracker {
	t := &tracker{parts: map[string]float64{partVideo: 0}, weight: 1, emit: emit}
	if withAudio {
		t.parts[partControls] = 0
		t.parts[partRead] = 0
		t.weight = 1.0 / 3
	}
	return t
}

func (t *tracker) update(part string, v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.parts[part]
	if !ok || v <= old {
		return
	}
	t.parts[part] = min(v, 1)
	t.publish(nil)
}

// fold counts abandoned contributors as complete.
func (t *tracker) fold(parts ...string) {
	for _, p := range parts {
		t.update(p, 1)
	}
}

func (t *tracker) preview(p types.Preview) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(Progress{Fraction: t.last, Preview: &p})
}

func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last < 1 {
		t.last = 1
		t.emit(Progress{Fraction: 1})
	}
}

func (t *tracker) publish(p *types.Preview) {
	sum := 0.0
	for _, v := range t.parts {
		sum += v
	}
	total := min(sum*t.weight, 1)
	if total <= t.last && p == nil {
		return
	}
	t.last = max(total, t.last)
	t.emit(Progress{Fraction: t.last, Preview: p})
}
