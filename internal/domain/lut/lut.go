// Package lut records warped/original time pairs and inverts them.
package lut

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrOutOfOrder = errors.New("warped time is not increasing")

// Point pairs an output (warped) time with its source (original) time, both in seconds.
type Point struct {
	Warped   float64 `json:"warped"`
	Original float64 `json:"original"`
}

// Table is an append-only lookup table with strictly increasing warped times.
// It is not safe for concurrent writers.
type Table struct {
	points []Point
}

func (t *Table) Append(warped, original float64) error {
	if n := len(t.points); n > 0 && warped <= t.points[n-1].Warped {
		return fmt.Errorf("%w: %.6f after %.6f", ErrOutOfOrder, warped, t.points[n-1].Warped)
	}
	t.points = append(t.points, Point{Warped: warped, Original: original})
	return nil
}

func (t *Table) Len() int { return len(t.points) }

func (t *Table) Points() []Point { return append([]Point(nil), t.points...) }

// Last returns the final recorded pair.
func (t *Table) Last() (Point, bool) {
	if len(t.points) == 0 {
		return Point{}, false
	}
	return t.points[len(t.points)-1], true
}

// Lookup maps a warped time to the fraction of the original consumed. Times
// past the table clamp to 1, times before it to 0. ok is false for an empty
// table.
func (t *Table) Lookup(warped float64) (float64, bool) {
	n := len(t.points)
	if n == 0 {
		return 0, false
	}
	last := t.points[n-1].Original
	if last <= 0 || math.IsNaN(warped) {
		return 0, false
	}
	if warped < t.points[0].Warped {
		return 0, true
	}
	if warped >= t.points[n-1].Warped {
		return 1, true
	}
	i := sort.Search(n, func(i int) bool { return t.points[i].Warped > warped }) - 1
	a, b := t.points[i], t.points[i+1]
	d := b.Warped - a.Warped
	if d == 0 {
		return a.Original / last, true
	}
	y := a.Original + (warped-a.Warped)*(b.Original-a.Original)/d
	return y / last, true
}

func (t *Table) MarshalJSON() ([]byte, error) {
	if t.points == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.points)
}

func (t *Table) UnmarshalJSON(b []byte) error {
	var pts []Point
	if err := json.Unmarshal(b, &pts); err != nil {
		return err
	}
	var next Table
	for _, p := range pts {
		if err := next.Append(p.Warped, p.Original); err != nil {
			return err
		}
	}
	*t = next
	return nil
}

// FormatSeconds renders MM:SS, or H:MM:SS once an hour is reached.
func FormatSeconds(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	total := int(sec)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
