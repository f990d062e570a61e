package warp

import "math"

const (
	FactorMin   = 0.1
	FactorMax   = 4.0
	ModifierMin = 0.1
	ModifierMax = 1.0
)

// ValidParams reports whether factor and modifier lie within the documented bounds.
func ValidParams(factor, modifier float64) bool {
	return factor >= FactorMin && factor <= FactorMax &&
		modifier >= ModifierMin && modifier <= ModifierMax
}

// validFor applies the parameter bounds typ depends on. Constant shapes
// ignore the modifier.
func validFor(typ Type, factor, modifier float64) bool {
	if typ == Constant || typ == ConstantCompliment {
		return factor >= FactorMin && factor <= FactorMax
	}
	return ValidParams(factor, modifier)
}

// Speed evaluates the speed multiplier of typ at local time t in [0,1].
// Out of bound parameters or t yield 0.
func Speed(typ Type, t, factor, modifier float64) float64 {
	if !validFor(typ, factor, modifier) || t < 0 || t > 1 || math.IsNaN(t) {
		return 0
	}
	switch typ {
	case DoubleSmoothstep:
		lo, hi := window(0.25, modifier)
		return doubleSmoothstep(t, 1, factor, lo, hi)
	case Smoothstep:
		lo, hi := window(0.5, modifier)
		return smoothstepRamp(t, 1, factor, lo, hi)
	case SmoothstepFlipped:
		lo, hi := window(0.5, modifier)
		return smoothstepRampFlipped(t, factor, 1, lo, hi)
	case Triangle:
		lo, hi := window(0.5, modifier)
		return triangle(t, 1, factor, lo, hi)
	case Cosine:
		return cosine(t, factor, modifier)
	case CosineFlipped:
		return cosine(1-t, factor, modifier)
	case Sine:
		return sine(t, factor, modifier)
	case SineFlipped:
		return sine(1-t, factor, modifier)
	case TaperedCosine:
		return tapered(cosine, t, factor, modifier)
	case TaperedCosineFlipped:
		return tapered(cosine, 1-t, factor, modifier)
	case TaperedSine:
		return tapered(sine, t, factor, modifier)
	case TaperedSineFlipped:
		return tapered(sine, 1-t, factor, modifier)
	case Constant, ConstantCompliment:
		return factor
	case Power:
		return power(t, factor, modifier)
	case PowerFlipped:
		return power(1-t, factor, modifier)
	}
	return 0
}

// Func binds parameters and returns the speed curve as a plain function.
func Func(typ Type, factor, modifier float64) func(float64) float64 {
	return func(t float64) float64 { return Speed(typ, t, factor, modifier) }
}

func window(c, modifier float64) (lo, hi float64) {
	w := c * modifier
	return c - w, c + w
}

func unitmap(x0, x1, x float64) float64 { return (x - x0) / (x1 - x0) }

func mapunit(x0, x1, x float64) float64 { return (x1-x0)*x + x0 }

func smoothstep(x float64) float64 { return -2*x*x*x + 3*x*x }

func line(x1, y1, x2, y2, x float64) float64 { return y1 + (x-x1)*(y2-y1)/(x2-x1) }

func smoothstepRamp(t, from, to, lo, hi float64) float64 {
	if from <= 0 || to <= 0 || lo < 0 || hi > 1 {
		return 0
	}
	switch {
	case t <= lo:
		return from
	case t <= hi:
		return mapunit(from, to, smoothstep(unitmap(lo, hi, t)))
	default:
		return to
	}
}

func smoothstepRampFlipped(t, from, to, lo, hi float64) float64 {
	if from <= 0 || to <= 0 || lo < 0 || hi > 1 {
		return 0
	}
	switch {
	case t <= lo:
		return from
	case t <= hi:
		return mapunit(to, from, smoothstep(1-unitmap(lo, hi, t)))
	default:
		return to
	}
}

func doubleSmoothstep(t, from, to, lo, hi float64) float64 {
	if from <= 0 || to <= 0 || lo < 0 || hi > 0.5 {
		return 0
	}
	switch {
	case t <= lo:
		return from
	case t <= hi:
		return mapunit(from, to, smoothstep(unitmap(lo, hi, t)))
	case t <= 1-hi:
		return to
	case t <= 1-lo:
		return mapunit(from, to, smoothstep(1-unitmap(1-hi, 1-lo, t)))
	default:
		return from
	}
}

func triangle(t, from, to, lo, hi float64) float64 {
	if from <= 0 || to <= 0 || lo < 0 || hi > 1 {
		return 0
	}
	c := (lo + hi) / 2
	switch {
	case t <= lo:
		return from
	case t <= c:
		return line(lo, from, c, to, t)
	case t <= hi:
		return line(hi, from, c, to, t)
	default:
		return from
	}
}

func waveNumber(modifier float64) float64 { return 12 * modifier * math.Pi }

func cosine(t, factor, modifier float64) float64 {
	return factor*(math.Cos(waveNumber(modifier)*t)+1) + factor/2
}

func sine(t, factor, modifier float64) float64 {
	return factor*(math.Sin(waveNumber(modifier)*t)+1) + factor/2
}

func tapered(wave func(t, factor, modifier float64) float64, t, factor, modifier float64) float64 {
	return 1 + (wave(t, factor, modifier)-1)*smoothstep(t)
}

func power(t, factor, modifier float64) float64 {
	return 2*modifier*math.Pow(t, factor) + modifier/2
}
