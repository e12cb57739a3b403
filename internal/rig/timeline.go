package rig

import (
	"fmt"
	gomath "math"
	"sort"
	"strings"

	"github.com/Faultbox/rigbridge/pkg/math"
)

// TimeEpsilon is the tolerance for treating two timestamps as equal.
const TimeEpsilon = 1e-5

// EasingStyle is the interpolation style from one sample to the next.
type EasingStyle int

const (
	EasingLinear EasingStyle = iota
	EasingConstant
	EasingElastic
	EasingCubic
	EasingBounce
	EasingCubicV2
)

var easingStyleNames = [...]string{
	EasingLinear:   "Linear",
	EasingConstant: "Constant",
	EasingElastic:  "Elastic",
	EasingCubic:    "Cubic",
	EasingBounce:   "Bounce",
	EasingCubicV2:  "CubicV2",
}

// String returns the engine name of the style.
func (s EasingStyle) String() string {
	if s >= 0 && int(s) < len(easingStyleNames) {
		return easingStyleNames[s]
	}
	return fmt.Sprintf("Unknown(%d)", int(s))
}

// ParseEasingStyle resolves a style name. Unknown names return Linear and false.
func ParseEasingStyle(name string) (EasingStyle, bool) {
	for i, n := range easingStyleNames {
		if strings.EqualFold(n, name) {
			return EasingStyle(i), true
		}
	}
	return EasingLinear, false
}

// EasingDirection is the easing direction.
type EasingDirection int

const (
	DirectionIn EasingDirection = iota
	DirectionOut
	DirectionInOut
)

var easingDirectionNames = [...]string{
	DirectionIn:    "In",
	DirectionOut:   "Out",
	DirectionInOut: "InOut",
}

// String returns the engine name of the direction.
func (d EasingDirection) String() string {
	if d >= 0 && int(d) < len(easingDirectionNames) {
		return easingDirectionNames[d]
	}
	return fmt.Sprintf("Unknown(%d)", int(d))
}

// ParseEasingDirection resolves a direction name. Unknown names return In and false.
func ParseEasingDirection(name string) (EasingDirection, bool) {
	for i, n := range easingDirectionNames {
		if strings.EqualFold(n, name) {
			return EasingDirection(i), true
		}
	}
	return DirectionIn, false
}

// PoseSample is one timestamped pose of a node.
type PoseSample struct {
	Time      float64
	Transform math.Transform
	Style     EasingStyle
	Direction EasingDirection
}

// PoseTimeline is a node's sparse time -> pose map.
//
// Samples must be kept in ascending time order by whoever appends them.
// Query does not sort; an out-of-order timeline gives order-dependent
// answers rather than an error.
type PoseTimeline struct {
	samples []PoseSample
}

// Len returns the number of samples.
func (tl *PoseTimeline) Len() int {
	return len(tl.samples)
}

// At returns the i-th sample in stored order.
func (tl *PoseTimeline) At(i int) PoseSample {
	return tl.samples[i]
}

// Times returns the sample timestamps in stored order.
func (tl *PoseTimeline) Times() []float64 {
	out := make([]float64, len(tl.samples))
	for i, s := range tl.samples {
		out[i] = s.Time
	}
	return out
}

// Append adds a sample at the end without reordering.
func (tl *PoseTimeline) Append(s PoseSample) {
	tl.samples = append(tl.samples, s)
}

// Set inserts s in time order, replacing a sample within TimeEpsilon of s.Time.
// It assumes the timeline is already sorted.
func (tl *PoseTimeline) Set(s PoseSample) {
	i := sort.Search(len(tl.samples), func(i int) bool {
		return tl.samples[i].Time >= s.Time-TimeEpsilon
	})
	if i < len(tl.samples) && gomath.Abs(tl.samples[i].Time-s.Time) <= TimeEpsilon {
		tl.samples[i] = s
		return
	}
	tl.samples = append(tl.samples, PoseSample{})
	copy(tl.samples[i+1:], tl.samples[i:])
	tl.samples[i] = s
}

// Remove deletes the sample at time t and reports whether one existed.
func (tl *PoseTimeline) Remove(t float64) bool {
	for i, s := range tl.samples {
		if gomath.Abs(s.Time-t) <= TimeEpsilon {
			tl.samples = append(tl.samples[:i], tl.samples[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all samples.
func (tl *PoseTimeline) Clear() {
	tl.samples = nil
}

// Exact returns the sample stored at time t, if any.
func (tl *PoseTimeline) Exact(t float64) (PoseSample, bool) {
	for _, s := range tl.samples {
		if gomath.Abs(s.Time-t) <= TimeEpsilon {
			return s, true
		}
	}
	return PoseSample{}, false
}

// Query returns the pose at time t. It reports false only when the timeline
// is empty.
//
// An exact sample wins. Before the first sample the first value is held;
// after the last, or after a Constant sample, the previous value is held.
// Otherwise position and rotation columns are interpolated linearly and the
// result keeps the previous sample's easing.
func (tl *PoseTimeline) Query(t float64) (PoseSample, bool) {
	if len(tl.samples) == 0 {
		return PoseSample{}, false
	}

	var prev, next *PoseSample
	for i := range tl.samples {
		s := &tl.samples[i]
		if gomath.Abs(s.Time-t) <= TimeEpsilon {
			return *s, true
		}
		if s.Time < t {
			prev = s
		} else if next == nil {
			next = s
		}
	}

	if prev == nil {
		held := *next
		held.Time = t
		return held, true
	}
	if next == nil || prev.Style == EasingConstant {
		held := *prev
		held.Time = t
		return held, true
	}

	span := next.Time - prev.Time
	if span <= 0 {
		return *prev, true
	}
	alpha := (t - prev.Time) / span
	alpha = gomath.Max(0, gomath.Min(1, alpha))

	return PoseSample{
		Time:      t,
		Transform: prev.Transform.Lerp(next.Transform, alpha),
		Style:     prev.Style,
		Direction: prev.Direction,
	}, true
}
