package rig

import (
	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
)

// Edge is one connector seen from one of its endpoints.
type Edge struct {
	Connector *host.Instance
	Other     *host.Instance
}

// JointGraphIndex maps each connector endpoint to the connectors touching it,
// in discovery order.
type JointGraphIndex struct {
	adj        map[host.Ref][]*host.Instance
	connectors []*host.Instance
	excluded   []*host.Instance
}

type connectorKey struct {
	parent host.Ref
	name   string
}

// NewJointGraphIndex indexes every connector below scope in one pass.
// Connectors sharing a name under the same parent are ambiguous: the first
// one seen is kept and the rest are left out of the index.
func NewJointGraphIndex(w *host.World, scope *host.Instance) *JointGraphIndex {
	idx := &JointGraphIndex{adj: make(map[host.Ref][]*host.Instance)}
	seen := make(map[connectorKey]bool)

	w.Descendants(scope, func(inst *host.Instance) bool {
		if !inst.Class.IsConnector() || inst.Part0 == nil || inst.Part1 == nil {
			return true
		}
		key := connectorKey{name: inst.Name}
		if inst.Parent != nil {
			key.parent = inst.Parent.Ref
		}
		if seen[key] {
			logger.Warn("ambiguous connector name, ignoring duplicate",
				zap.String("connector", inst.Name),
				zap.String("class", inst.Class.String()))
			idx.excluded = append(idx.excluded, inst)
			return true
		}
		seen[key] = true

		idx.connectors = append(idx.connectors, inst)
		idx.adj[inst.Part0.Ref] = append(idx.adj[inst.Part0.Ref], inst)
		if inst.Part1 != inst.Part0 {
			idx.adj[inst.Part1.Ref] = append(idx.adj[inst.Part1.Ref], inst)
		}
		return true
	})
	return idx
}

// Connectors returns the connectors touching ref.
func (x *JointGraphIndex) Connectors(ref host.Ref) []*host.Instance {
	return x.adj[ref]
}

// Neighbors returns the connectors touching ref paired with their other
// endpoint.
func (x *JointGraphIndex) Neighbors(ref host.Ref) []Edge {
	conns := x.adj[ref]
	out := make([]Edge, 0, len(conns))
	for _, c := range conns {
		other := c.Part1
		if c.Part1.Ref == ref {
			other = c.Part0
		}
		out = append(out, Edge{Connector: c, Other: other})
	}
	return out
}

// All returns every indexed connector in discovery order.
func (x *JointGraphIndex) All() []*host.Instance {
	return x.connectors
}

// Excluded returns the connectors dropped as ambiguous duplicates.
func (x *JointGraphIndex) Excluded() []*host.Instance {
	return x.excluded
}

// PrimaryJointsFrom returns the Motor6D connectors whose Part0 is ref.
func (x *JointGraphIndex) PrimaryJointsFrom(ref host.Ref) []*host.Instance {
	var out []*host.Instance
	for _, c := range x.adj[ref] {
		if c.Class == host.ClassMotor6D && c.Part0.Ref == ref {
			out = append(out, c)
		}
	}
	return out
}
