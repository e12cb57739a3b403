package rig

import (
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
	"github.com/Faultbox/rigbridge/pkg/formats"
)

// Marker is a named time marker on the rig's timeline.
type Marker struct {
	Time  float64
	Name  string
	Value string
}

// RigTree is the rig built from one selection. It is replaced wholesale when
// the selection or the rig structure changes.
type RigTree struct {
	Name        string
	Root        *Node
	IsDeformRig bool
	Duration    float64
	Loop        bool
	Markers     []Marker

	// Scheduler paces long traversals; may be nil.
	Scheduler *host.Scheduler

	byName     map[string]*Node
	byHandle   map[host.Ref]*Node
	nodes      []*Node
	duplicates map[string]bool
}

func newRigTree(name string) *RigTree {
	return &RigTree{
		Name:       name,
		byName:     make(map[string]*Node),
		byHandle:   make(map[host.Ref]*Node),
		duplicates: make(map[string]bool),
	}
}

// Node returns the node registered under name.
func (t *RigTree) Node(name string) (*Node, bool) {
	n, ok := t.byName[formats.NormalizeName(name)]
	return n, ok
}

// NodeByHandle returns the node built from the given engine instance.
func (t *RigTree) NodeByHandle(ref host.Ref) (*Node, bool) {
	n, ok := t.byHandle[ref]
	return n, ok
}

// Nodes returns every node in build order.
func (t *RigTree) Nodes() []*Node {
	out := make([]*Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Len returns the number of nodes.
func (t *RigTree) Len() int {
	return len(t.nodes)
}

// Walk visits the tree from the root, parents first.
func (t *RigTree) Walk(fn func(*Node) bool) {
	if t.Root != nil {
		t.Root.Walk(fn)
	}
}

// DuplicateNames returns the names that collided during the build.
func (t *RigTree) DuplicateNames() []string {
	out := make([]string, 0, len(t.duplicates))
	for name := range t.duplicates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ClearAnimation drops every node's samples and the timeline metadata.
func (t *RigTree) ClearAnimation() {
	for _, n := range t.nodes {
		n.Timeline.Clear()
	}
	t.Duration = 0
	t.Loop = false
	t.Markers = nil
}

// AddMarker inserts a marker keeping markers ordered by time.
func (t *RigTree) AddMarker(m Marker) {
	i := sort.Search(len(t.Markers), func(i int) bool { return t.Markers[i].Time > m.Time })
	t.Markers = append(t.Markers, Marker{})
	copy(t.Markers[i+1:], t.Markers[i:])
	t.Markers[i] = m
}

// register indexes n by handle and name. On a name collision the node with
// more structural information (deform-bone data) keeps the name; otherwise
// the first registered node does. The outcome depends on build order.
func (t *RigTree) register(n *Node) {
	t.nodes = append(t.nodes, n)
	t.byHandle[n.Handle] = n

	key := formats.NormalizeName(n.Name)
	existing, ok := t.byName[key]
	if !ok {
		t.byName[key] = n
		return
	}

	if !t.duplicates[key] {
		t.duplicates[key] = true
		logger.Warn("duplicate node name in rig",
			zap.String("rig", t.Name),
			zap.String("node", n.Name),
			zap.String("existing_type", existing.Type.String()),
			zap.String("new_type", n.Type.String()))
	}
	if n.IsDeformBone() && !existing.IsDeformBone() {
		t.byName[key] = n
	}
}
