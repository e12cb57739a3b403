// Package codec converts between a RigTree with its pose timelines, the
// engine's native keyframe objects, and the flattened wire structures.
package codec

import (
	"errors"
	gomath "math"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
	"github.com/Faultbox/rigbridge/internal/rig"
	"github.com/Faultbox/rigbridge/pkg/formats"
	"github.com/Faultbox/rigbridge/pkg/math"
)

// ErrNoTree is returned when an operation needs a built rig.
var ErrNoTree = errors.New("no rig tree")

// Codec converts animation data for one rig at a time.
type Codec struct {
	// Scheduler paces long walks; may be nil.
	Scheduler *host.Scheduler
}

// New returns a codec yielding through s.
func New(s *host.Scheduler) *Codec {
	return &Codec{Scheduler: s}
}

// LoadReport summarizes what LoadAnimation applied and skipped.
type LoadReport struct {
	Keyframes    int
	Poses        int
	Skipped      int
	UnknownNodes []string
	Sanitized    int
}

// LoadAnimation replaces every timeline of tree with the payload's poses.
// Keyframes are applied in payload order. Bad keyframes and poses are skipped
// with a warning; degenerate rotation columns are replaced by the canonical
// axis and unknown easing names fall back to Linear/In.
func (c *Codec) LoadAnimation(tree *rig.RigTree, p *formats.AnimationPayload) (LoadReport, error) {
	var rep LoadReport
	if tree == nil {
		return rep, ErrNoTree
	}
	tree.ClearAnimation()

	unknown := make(map[string]bool)
	for i, kf := range p.Keyframes {
		if kf.Time < 0 || gomath.IsNaN(kf.Time) || gomath.IsInf(kf.Time, 0) {
			logger.Warn("skipping keyframe with invalid time",
				zap.Int("keyframe", i), zap.Float64("time", kf.Time))
			rep.Skipped++
			continue
		}
		rep.Keyframes++

		names := make([]string, 0, len(kf.Poses))
		for name := range kf.Poses {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			c.Scheduler.Step()
			node, ok := tree.Node(name)
			if !ok {
				if !unknown[name] {
					unknown[name] = true
					logger.Warn("pose for unknown node", zap.String("rig", tree.Name), zap.String("node", name))
				}
				continue
			}
			sample, fixed, err := poseSample(kf.Time, kf.Poses[name], name)
			if err != nil {
				logger.Warn("skipping pose", zap.Int("keyframe", i), zap.String("node", name), zap.Error(err))
				rep.Skipped++
				continue
			}
			if fixed > 0 {
				logger.Warn("replaced degenerate rotation columns",
					zap.String("node", name), zap.Float64("time", kf.Time), zap.Int("columns", fixed))
				rep.Sanitized += fixed
			}
			node.Timeline.Append(sample)
			rep.Poses++
		}
	}

	tree.Duration = p.Duration
	tree.Loop = p.Loop
	if tree.IsDeformRig != p.IsDeformBoneRig {
		logger.Warn("payload deform flag differs from rig",
			zap.String("rig", tree.Name),
			zap.Bool("rig_deform", tree.IsDeformRig),
			zap.Bool("payload_deform", p.IsDeformBoneRig))
	}
	tree.IsDeformRig = p.IsDeformBoneRig
	for _, m := range p.Markers {
		tree.AddMarker(rig.Marker{Time: m.Time, Name: m.Name, Value: m.Value})
	}

	for name := range unknown {
		rep.UnknownNodes = append(rep.UnknownNodes, name)
	}
	sort.Strings(rep.UnknownNodes)
	return rep, nil
}

// poseSample converts a wire pose into a timeline sample, returning how many
// rotation columns had to be replaced.
func poseSample(t float64, rec formats.PoseRecord, name string) (rig.PoseSample, int, error) {
	tr, err := math.FromComponents(rec.Components)
	if err != nil {
		return rig.PoseSample{}, 0, err
	}
	tr, fixed := tr.Sanitize()

	style, ok := rig.ParseEasingStyle(rec.EasingStyle)
	if !ok && rec.EasingStyle != "" {
		logger.Warn("unknown easing style, using Linear",
			zap.String("node", name), zap.String("style", rec.EasingStyle))
	}
	dir, ok := rig.ParseEasingDirection(rec.EasingDirection)
	if !ok && rec.EasingDirection != "" {
		logger.Warn("unknown easing direction, using In",
			zap.String("node", name), zap.String("direction", rec.EasingDirection))
	}
	return rig.PoseSample{Time: t, Transform: tr, Style: style, Direction: dir}, fixed, nil
}
