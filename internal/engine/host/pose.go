package host

import (
	"sort"

	"github.com/Faultbox/rigbridge/pkg/math"
)

// Pose is the engine's per-node animation record inside a keyframe. Poses
// nest the same way the rig does.
type Pose struct {
	Name            string
	CFrame          math.Transform
	Weight          float64
	EasingStyle     string
	EasingDirection string
	SubPoses        []*Pose
}

// Walk visits p and its sub-poses depth-first, parents first.
func (p *Pose) Walk(fn func(*Pose)) {
	fn(p)
	for _, sp := range p.SubPoses {
		sp.Walk(fn)
	}
}

// Marker is a named event attached to a keyframe.
type Marker struct {
	Name  string
	Value string
}

// Keyframe is one timestamp of a KeyframeSequence.
type Keyframe struct {
	Time    float64
	Poses   []*Pose
	Markers []Marker
}

// Find returns the pose with the given name anywhere in the keyframe.
func (k *Keyframe) Find(name string) *Pose {
	var found *Pose
	for _, p := range k.Poses {
		p.Walk(func(q *Pose) {
			if found == nil && q.Name == name {
				found = q
			}
		})
	}
	return found
}

// KeyframeSequence is the engine's playable animation asset.
type KeyframeSequence struct {
	Name      string
	Loop      bool
	Keyframes []*Keyframe
}

// Duration returns the time of the last keyframe.
func (s *KeyframeSequence) Duration() float64 {
	d := 0.0
	for _, k := range s.Keyframes {
		if k.Time > d {
			d = k.Time
		}
	}
	return d
}

// Sorted returns the keyframes ordered by time without modifying s.
func (s *KeyframeSequence) Sorted() []*Keyframe {
	out := make([]*Keyframe, len(s.Keyframes))
	copy(out, s.Keyframes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
