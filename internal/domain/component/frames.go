package component

// FrameForUnit maps a unit interval value to a 1-based frame position.
func FrameForUnit(v float64, frameCount int) float64 {
	return 1 + v*float64(frameCount-1)
}

// UnitForFrame is the inverse of FrameForUnit.
func UnitForFrame(frame float64, frameCount int) float64 {
	if frameCount <= 1 {
		return 0
	}
	return (frame - 1) / float64(frameCount-1)
}

// FrameRange converts a unit range to the frame positions it spans.
func FrameRange(r Range, frameCount int) (first, last float64) {
	return FrameForUnit(r.Lo, frameCount), FrameForUnit(r.Hi, frameCount)
}

// RangeForFrames converts frame positions back to a unit range.
func RangeForFrames(first, last float64, frameCount int) Range {
	return Range{Lo: UnitForFrame(first, frameCount), Hi: UnitForFrame(last, frameCount)}
}
