package warp

import "strings"

// Type selects the shape of a speed curve on the unit interval.
type Type int

const (
	DoubleSmoothstep Type = iota
	Smoothstep
	SmoothstepFlipped
	Triangle
	Cosine
	CosineFlipped
	Sine
	SineFlipped
	TaperedCosine
	TaperedCosineFlipped
	TaperedSine
	TaperedSineFlipped
	Constant
	Power
	PowerFlipped
	// ConstantCompliment marks synthesized gap fillers. It is never user selectable.
	ConstantCompliment
)

const flippedSuffix = " Flipped"

var names = [...]string{
	DoubleSmoothstep:     "Double Smooth Step",
	Smoothstep:           "Smooth Step",
	SmoothstepFlipped:    "Smooth Step Flipped",
	Triangle:             "Triangle",
	Cosine:               "Cosine",
	CosineFlipped:        "Cosine Flipped",
	Sine:                 "Sine",
	SineFlipped:          "Sine Flipped",
	TaperedCosine:        "Tapered Cosine",
	TaperedCosineFlipped: "Tapered Cosine Flipped",
	TaperedSine:          "Tapered Sine",
	TaperedSineFlipped:   "Tapered Sine Flipped",
	Constant:             "Constant",
	Power:                "Power",
	PowerFlipped:         "Power Flipped",
	ConstantCompliment:   "Constant Compliment",
}

// All lists every type in declaration order.
func All() []Type {
	out := make([]Type, 0, len(names))
	for i := range names {
		out = append(out, Type(i))
	}
	return out
}

func (t Type) Valid() bool { return t >= 0 && int(t) < len(names) }

func (t Type) String() string {
	if !t.Valid() {
		return "Unknown"
	}
	return names[t]
}

// ParseType resolves a display name such as "Tapered Sine Flipped".
func ParseType(name string) (Type, bool) {
	name = strings.TrimSpace(name)
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return Type(i), true
		}
	}
	return 0, false
}

func (t Type) IsFlipped() bool { return strings.HasSuffix(t.String(), flippedSuffix) }

// Flipped returns the mirrored variant, if the shape has one.
func (t Type) Flipped() (Type, bool) {
	if t.IsFlipped() {
		return 0, false
	}
	return ParseType(t.String() + flippedSuffix)
}

// Unflipped returns the base shape. Types without one fall back to DoubleSmoothstep.
func (t Type) Unflipped() Type {
	if u, ok := ParseType(strings.TrimSuffix(t.String(), flippedSuffix)); ok {
		return u
	}
	return DoubleSmoothstep
}

func (t Type) Selectable() bool { return t != ConstantCompliment }

// AllUnflipped lists the base shapes offered to users.
func AllUnflipped() []Type {
	var out []Type
	for _, t := range All() {
		if !t.IsFlipped() && t.Selectable() {
			out = append(out, t)
		}
	}
	return out
}
