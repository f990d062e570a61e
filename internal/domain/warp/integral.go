package warp

import "math"

// Integral returns the area under Speed(typ, ., factor, modifier) on [0,t].
// t is clamped to [0,1]. ok is false only when numeric integration fails.
func Integral(typ Type, t, factor, modifier float64) (float64, bool) {
	if math.IsNaN(t) {
		return 0, false
	}
	t = math.Max(0, math.Min(1, t))
	if !validFor(typ, factor, modifier) {
		return 0, true
	}
	switch typ {
	case DoubleSmoothstep:
		lo, hi := window(0.25, modifier)
		return doubleSmoothstepArea(t, 1, factor, lo, hi), true
	case Smoothstep:
		lo, hi := window(0.5, modifier)
		return rampArea(t, 1, factor, lo, hi), true
	case SmoothstepFlipped:
		lo, hi := window(0.5, modifier)
		return rampFlippedArea(t, factor, 1, lo, hi), true
	case Triangle:
		lo, hi := window(0.5, modifier)
		return triangleArea(t, 1, factor, lo, hi), true
	case Cosine:
		return cosineArea(t, factor, modifier), true
	case CosineFlipped:
		return mirrored(cosineArea, t, factor, modifier), true
	case Sine:
		return sineArea(t, factor, modifier), true
	case SineFlipped:
		return mirrored(sineArea, t, factor, modifier), true
	case Constant, ConstantCompliment:
		return factor * t, true
	case Power:
		return powerArea(t, factor, modifier), true
	case PowerFlipped:
		return mirrored(powerArea, t, factor, modifier), true
	}
	return Quadrature(Func(typ, factor, modifier), 0, t)
}

// smoothArea is the antiderivative of smoothstep on [0,1].
func smoothArea(u float64) float64 { return u*u*u - u*u*u*u/2 }

func clampUnit(u float64) float64 { return math.Max(0, math.Min(1, u)) }

func rampArea(t, from, to, lo, hi float64) float64 {
	if from <= 0 || to <= 0 || lo < 0 || hi > 1 {
		return 0
	}
	a := from * math.Min(t, lo)
	if t > lo {
		u := clampUnit(unitmap(lo, hi, t))
		a += (hi - lo) * (from*u + (to-from)*smoothArea(u))
	}
	if t > hi {
		a += to * (t - hi)
	}
	return a
}

func rampFlippedArea(t, from, to, lo, hi float64) float64 {
	if from <= 0 || to <= 0 || lo < 0 || hi > 1 {
		return 0
	}
	a := from * math.Min(t, lo)
	if t > lo {
		u := clampUnit(unitmap(lo, hi, t))
		a += (hi - lo) * (to*u + (from-to)*(0.5-smoothArea(1-u)))
	}
	if t > hi {
		a += to * (t - hi)
	}
	return a
}

func doubleSmoothstepArea(t, from, to, lo, hi float64) float64 {
	if from <= 0 || to <= 0 || lo < 0 || hi > 0.5 {
		return 0
	}
	w := hi - lo
	a := from * math.Min(t, lo)
	if t > lo {
		u := clampUnit(unitmap(lo, hi, t))
		a += w * (from*u + (to-from)*smoothArea(u))
	}
	if t > hi {
		a += to * (math.Min(t, 1-hi) - hi)
	}
	if t > 1-hi {
		u := clampUnit(unitmap(1-hi, 1-lo, t))
		a += w * (from*u + (to-from)*(0.5-smoothArea(1-u)))
	}
	if t > 1-lo {
		a += from * (t - (1 - lo))
	}
	return a
}

func triangleArea(t, from, to, lo, hi float64) float64 {
	if from <= 0 || to <= 0 || lo < 0 || hi > 1 {
		return 0
	}
	c := (lo + hi) / 2
	a := from * math.Min(t, lo)
	if t > lo {
		x := math.Min(t, c) - lo
		a += from*x + (to-from)*x*x/(2*(c-lo))
	}
	if t > c {
		x := math.Min(t, hi) - c
		a += to*x + (from-to)*x*x/(2*(hi-c))
	}
	if t > hi {
		a += from * (t - hi)
	}
	return a
}

func cosineArea(t, factor, modifier float64) float64 {
	k := waveNumber(modifier)
	return factor*(math.Sin(k*t)/k+t) + factor*t/2
}

func sineArea(t, factor, modifier float64) float64 {
	k := waveNumber(modifier)
	return factor*((1-math.Cos(k*t))/k+t) + factor*t/2
}

func powerArea(t, factor, modifier float64) float64 {
	return 2*modifier*math.Pow(t, factor+1)/(factor+1) + modifier*t/2
}

// mirrored integrates g(1-x) on [0,t] from the antiderivative of g.
func mirrored(area func(t, factor, modifier float64) float64, t, factor, modifier float64) float64 {
	return area(1, factor, modifier) - area(1-t, factor, modifier)
}
