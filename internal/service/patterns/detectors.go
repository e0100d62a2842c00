package patterns

import (
	"math"

	"ChartPulse/internal/domain/models"
)

// Reference detectors shipped with the engine. Each is a pure function over
// a series of closed bars; richer detectors plug in through the same
// interface.

// EngulfingDetector flags a bar whose body fully engulfs the previous
// bar's body in the opposite direction.
type EngulfingDetector struct{}

func (EngulfingDetector) Family() string { return "engulfing" }

func (EngulfingDetector) Detect(bars []models.Bar) []models.RawPatternEvent {
	var out []models.RawPatternEvent
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1], bars[i]
		prevBull := prev.C > prev.O
		curBull := cur.C > cur.O
		if prevBull == curBull {
			continue
		}
		if math.Max(cur.O, cur.C) <= math.Max(prev.O, prev.C) ||
			math.Min(cur.O, cur.C) >= math.Min(prev.O, prev.C) {
			continue
		}
		dir := "bear"
		if curBull {
			dir = "bull"
		}
		out = append(out, models.RawPatternEvent{
			Family:    "engulfing",
			Direction: dir,
			AnchorTs:  []int64{prev.T, cur.T},
			Price:     cur.C,
		})
	}
	return out
}

// PinbarDetector flags bars whose dominant wick is at least twice the body,
// a common exhaustion signal.
type PinbarDetector struct{}

func (PinbarDetector) Family() string { return "pinbar" }

func (PinbarDetector) Detect(bars []models.Bar) []models.RawPatternEvent {
	var out []models.RawPatternEvent
	for _, b := range bars {
		body := math.Abs(b.C - b.O)
		if body == 0 {
			body = (b.H - b.L) * 0.01
		}
		upper := b.H - math.Max(b.O, b.C)
		lower := math.Min(b.O, b.C) - b.L

		switch {
		case lower >= 2*body && lower > upper:
			out = append(out, models.RawPatternEvent{
				Family:    "pinbar",
				Direction: "bull",
				AnchorTs:  []int64{b.T},
				Price:     b.C,
			})
		case upper >= 2*body && upper > lower:
			out = append(out, models.RawPatternEvent{
				Family:    "pinbar",
				Direction: "bear",
				AnchorTs:  []int64{b.T},
				Price:     b.C,
			})
		}
	}
	return out
}
