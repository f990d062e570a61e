package warp

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

const (
	absTolerance = 1e-8
	relTolerance = 1e-2

	legendreNodes = 16
	panelsPerUnit = 8
	maxDepth      = 24
)

// Quadrature integrates f over [a,b] with Gauss-Legendre panels refined by
// bisection until the absolute or relative tolerance is met. ok is false when
// the estimate is not finite or refinement does not converge.
func Quadrature(f func(float64) float64, a, b float64) (float64, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, false
	}
	if a == b {
		return 0, true
	}
	if a > b {
		v, ok := Quadrature(f, b, a)
		return -v, ok
	}

	n := int(math.Ceil((b - a) * panelsPerUnit))
	if n < 1 {
		n = 1
	}
	h := (b - a) / float64(n)
	sum := 0.0
	for i := 0; i < n; i++ {
		lo := a + float64(i)*h
		hi := lo + h
		if i == n-1 {
			hi = b
		}
		v, ok := adapt(f, lo, hi, panel(f, lo, hi), 0)
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum, true
}

func adapt(f func(float64) float64, a, b, whole float64, depth int) (float64, bool) {
	m := (a + b) / 2
	left := panel(f, a, m)
	right := panel(f, m, b)
	sum := left + right
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, false
	}
	if math.Abs(sum-whole) <= math.Max(absTolerance, relTolerance*math.Abs(sum)) {
		return sum, true
	}
	if depth >= maxDepth {
		return 0, false
	}
	l, ok := adapt(f, a, m, left, depth+1)
	if !ok {
		return 0, false
	}
	r, ok := adapt(f, m, b, right, depth+1)
	if !ok {
		return 0, false
	}
	return l + r, true
}

func panel(f func(float64) float64, a, b float64) float64 {
	return quad.Fixed(f, a, b, legendreNodes, quad.Legendre{}, 0)
}
