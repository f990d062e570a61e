// Package resample re-times video frames and PCM audio along a warp.
package resample

import (
	"context"
	"errors"
)

// State is the lifecycle of one pipeline.
type State int

const (
	Idle State = iota
	Reading
	Writing
	Finished
	Cancelled
	Failed
)

var stateNames = [...]string{"idle", "reading", "writing", "finished", "cancelled", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) Terminal() bool { return s == Finished || s == Cancelled || s == Failed }

// ErrControlIndex means the audio control index could not be built. The audio
// track is abandoned while video continues.
var ErrControlIndex = errors.New("control index unavailable")

// Stepper performs one unit of work per call and reports where it ended up.
type Stepper interface {
	Step(ctx context.Context) (State, error)
	Halt(s State)
}

// Demander is the writer side of a track: it signals when it can take more data.
type Demander interface {
	Demand() <-chan struct{}
	Ready() bool
	MarkFinished()
}

// Drive pumps s while the sink has demand, parking on Demand otherwise. The
// sink is always marked finished on return, including on cancellation.
func Drive(ctx context.Context, s Stepper, sink Demander) error {
	defer sink.MarkFinished()
	for {
		if ctx.Err() != nil {
			s.Halt(Cancelled)
			return context.Cause(ctx)
		}
		if !sink.Ready() {
			select {
			case <-ctx.Done():
			case <-sink.Demand():
			}
			continue
		}
		st, err := s.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.Halt(Cancelled)
				return context.Cause(ctx)
			}
			s.Halt(Failed)
			return err
		}
		if st == Finished {
			return nil
		}
	}
}

type machine struct {
	state State
}

func (m *machine) State() State { return m.state }

// Halt moves to a terminal state unless one was already reached.
func (m *machine) Halt(s State) {
	if !m.state.Terminal() {
		m.state = s
	}
}

func (m *machine) set(s State) { m.state = s }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
