// Package rig builds an acyclic, name-indexed rig tree from a host joint
// graph and stores per-node pose timelines.
package rig

import (
	"fmt"

	"github.com/Faultbox/rigbridge/internal/engine/host"
)

// ConnectorType classifies how a node hangs off its parent.
type ConnectorType int

const (
	ConnectorRoot ConnectorType = iota
	ConnectorBone
	ConnectorPrimaryJoint
	ConnectorAuxiliaryWeld
	ConnectorAnimationConstraint
)

// String returns a human-readable connector type name.
func (c ConnectorType) String() string {
	switch c {
	case ConnectorRoot:
		return "Root"
	case ConnectorBone:
		return "Bone"
	case ConnectorPrimaryJoint:
		return "PrimaryJoint"
	case ConnectorAuxiliaryWeld:
		return "AuxiliaryWeld"
	case ConnectorAnimationConstraint:
		return "AnimationConstraint"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// connectorTypeOf maps a connector class to its node type.
func connectorTypeOf(class host.Class) ConnectorType {
	switch class {
	case host.ClassMotor6D:
		return ConnectorPrimaryJoint
	case host.ClassAnimationConstraint:
		return ConnectorAnimationConstraint
	case host.ClassBone:
		return ConnectorBone
	default:
		return ConnectorAuxiliaryWeld
	}
}

// Node is one element of a RigTree. Children are owned; Parent is a back
// reference.
type Node struct {
	Name   string
	Handle host.Ref // part or bone
	Type   ConnectorType

	// Connector is the instance linking this node to its parent; NilRef for
	// the root and for deform bones.
	Connector     host.Ref
	ConnectorName string

	// JointParentIsPrimaryEndpoint records whether the connector's Part0 is
	// the tree parent. When false, the connector's halves are stored in the
	// opposite order to the tree direction.
	JointParentIsPrimaryEndpoint bool

	Parent   *Node
	Children []*Node
	Timeline PoseTimeline

	PlaybackEnabled bool
	ExportEnabled   bool
}

// IsDeformBone reports whether the node is driven by its own local transform.
func (n *Node) IsDeformBone() bool {
	return n.Type == ConnectorBone
}

// Depth returns the number of ancestors.
func (n *Node) Depth() int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// Path returns the names from the root down to n.
func (n *Node) Path() []string {
	var rev []string
	for p := n; p != nil; p = p.Parent {
		rev = append(rev, p.Name)
	}
	out := make([]string, len(rev))
	for i, name := range rev {
		out[len(rev)-1-i] = name
	}
	return out
}

// Walk visits n and its descendants depth-first, parents first. fn
// returning false skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
