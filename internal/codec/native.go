package codec

import (
	gomath "math"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
	"github.com/Faultbox/rigbridge/internal/rig"
	"github.com/Faultbox/rigbridge/pkg/formats"
	"github.com/Faultbox/rigbridge/pkg/math"
)

// Timestamps returns the sorted union of every sample time, every marker time
// and zero. Times within rig.TimeEpsilon of each other collapse to the first.
func Timestamps(tree *rig.RigTree) []float64 {
	times := []float64{0}
	for _, n := range tree.Nodes() {
		times = append(times, n.Timeline.Times()...)
	}
	for _, m := range tree.Markers {
		times = append(times, m.Time)
	}
	sort.Float64s(times)

	out := times[:1]
	for _, t := range times[1:] {
		if t-out[len(out)-1] > rig.TimeEpsilon {
			out = append(out, t)
		}
	}
	return out
}

// ToNativeTree materializes the tree's timelines as a keyframe sequence with
// one keyframe per timestamp. A node appears in a keyframe when it has a
// sample at that time or hosts a descendant that does. A hosting node with no
// samples at all gets an identity pose; one with samples elsewhere gets its
// interpolated value.
func (c *Codec) ToNativeTree(tree *rig.RigTree) (*host.KeyframeSequence, error) {
	if tree == nil || tree.Root == nil {
		return nil, ErrNoTree
	}
	seq := &host.KeyframeSequence{Name: tree.Name, Loop: tree.Loop}
	for _, t := range Timestamps(tree) {
		kf := &host.Keyframe{Time: t}
		if p := c.materialize(tree.Root, t); p != nil {
			kf.Poses = append(kf.Poses, p)
		}
		for _, m := range tree.Markers {
			if gomath.Abs(m.Time-t) <= rig.TimeEpsilon {
				kf.Markers = append(kf.Markers, host.Marker{Name: m.Name, Value: m.Value})
			}
		}
		seq.Keyframes = append(seq.Keyframes, kf)
	}
	return seq, nil
}

// materialize builds n's pose at t children first and returns nil when
// nothing in n's subtree has a value at t.
func (c *Codec) materialize(n *rig.Node, t float64) *host.Pose {
	c.Scheduler.Step()

	var subs []*host.Pose
	for _, child := range n.Children {
		if p := c.materialize(child, t); p != nil {
			subs = append(subs, p)
		}
	}

	sample, ok := n.Timeline.Exact(t)
	if !ok {
		if len(subs) == 0 {
			return nil
		}
		if sample, ok = n.Timeline.Query(t); !ok {
			sample = rig.PoseSample{Time: t, Transform: math.Identity()}
		}
	}

	weight := 0.0
	if n.PlaybackEnabled {
		weight = 1.0
	}
	return &host.Pose{
		Name:            n.Name,
		CFrame:          sample.Transform,
		Weight:          weight,
		EasingStyle:     sample.Style.String(),
		EasingDirection: sample.Direction.String(),
		SubPoses:        subs,
	}
}

// Serialize flattens a keyframe sequence into the wire payload. When tree is
// given, poses for nodes it does not know are dropped with a warning and
// nodes with export disabled are left out. Components are rounded to 1e-4.
func (c *Codec) Serialize(seq *host.KeyframeSequence, tree *rig.RigTree) *formats.AnimationPayload {
	p := &formats.AnimationPayload{
		Duration:  seq.Duration(),
		Keyframes: []formats.KeyframeRecord{},
		Loop:      seq.Loop,
	}
	if tree != nil {
		p.IsDeformBoneRig = tree.IsDeformRig
		if tree.Duration > p.Duration {
			p.Duration = tree.Duration
		}
	}

	warned := make(map[string]bool)
	for _, kf := range seq.Sorted() {
		rec := formats.KeyframeRecord{Time: kf.Time, Poses: make(map[string]formats.PoseRecord)}
		for _, root := range kf.Poses {
			root.Walk(func(pose *host.Pose) {
				c.Scheduler.Step()
				if tree != nil {
					node, ok := tree.Node(pose.Name)
					if !ok {
						if !warned[pose.Name] {
							warned[pose.Name] = true
							logger.Warn("dropping pose for node not in rig", zap.String("node", pose.Name))
						}
						return
					}
					if !node.ExportEnabled {
						return
					}
				}
				rec.Poses[formats.NormalizeName(pose.Name)] = formats.PoseRecord{
					Components:      pose.CFrame.Rounded(),
					EasingStyle:     pose.EasingStyle,
					EasingDirection: pose.EasingDirection,
				}
			})
		}
		p.Keyframes = append(p.Keyframes, rec)
		for _, m := range kf.Markers {
			p.Markers = append(p.Markers, formats.MarkerRecord{Time: kf.Time, Name: m.Name, Value: m.Value})
		}
	}
	return p
}
