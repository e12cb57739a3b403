package rig

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
)

// DefaultMaxDepth bounds the recursive build.
const DefaultMaxDepth = 1024

// ErrNoRoot is returned when there is nothing to build from.
var ErrNoRoot = errors.New("rig has no root part")

// Options control a build.
type Options struct {
	// Deform follows bones below parts and bones as deform nodes.
	Deform bool
	// MaxDepth overrides DefaultMaxDepth when positive.
	MaxDepth int
}

// BuildContext is the mutable state shared by one build.
type BuildContext struct {
	Depth    int
	MaxDepth int

	// Active holds the instances on the current recursion path, in ActivePath
	// order.
	Active     map[host.Ref]bool
	ActivePath []string

	// Visited holds every instance already turned into a node.
	Visited map[host.Ref]bool
}

// NewBuildContext returns an empty context. A non-positive maxDepth selects
// DefaultMaxDepth.
func NewBuildContext(maxDepth int) *BuildContext {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &BuildContext{
		MaxDepth: maxDepth,
		Active:   make(map[host.Ref]bool),
		Visited:  make(map[host.Ref]bool),
	}
}

// Builder turns the joint graph below one model into a RigTree.
type Builder struct {
	world  *host.World
	index  *JointGraphIndex
	tree   *RigTree
	deform bool
}

// Build checks the graph below root's model for cycles and builds the tree
// rooted at root.
func Build(w *host.World, root *host.Instance, opts Options) (*RigTree, error) {
	if root == nil {
		return nil, ErrNoRoot
	}
	scope := ModelOf(root)

	idx := NewJointGraphIndex(w, scope)
	if err := CheckJointCycles(idx, root); err != nil {
		return nil, err
	}
	if err := CheckBoneCycles(w, scope); err != nil {
		return nil, err
	}

	b := &Builder{
		world:  w,
		index:  idx,
		tree:   newRigTree(scope.Name),
		deform: opts.Deform,
	}
	b.tree.IsDeformRig = opts.Deform
	b.tree.Scheduler = &w.Scheduler

	ctx := NewBuildContext(opts.MaxDepth)
	node, err := b.Visit(root, nil, nil, ctx)
	if err != nil {
		return nil, err
	}
	b.tree.Root = node

	logger.Debug("rig built",
		zap.String("rig", b.tree.Name),
		zap.String("root", root.Name),
		zap.Int("nodes", b.tree.Len()),
		zap.Int("ignored_connectors", len(idx.Excluded())),
		zap.Bool("deform", opts.Deform))
	return b.tree, nil
}

// Visit builds the node for inst and everything reachable from it that has
// not been built yet. via is the connector linking inst to parent and is nil
// for the root and for deform bones. An instance already built elsewhere
// yields a nil node and no error.
func (b *Builder) Visit(inst *host.Instance, parent *Node, via *host.Instance, ctx *BuildContext) (*Node, error) {
	if ctx.Active[inst.Ref] {
		return nil, &CycleError{Kind: CyclePath, Chain: activeChain(ctx.ActivePath, inst.Name)}
	}
	if ctx.Visited[inst.Ref] {
		return nil, nil
	}

	ctx.Depth++
	defer func() { ctx.Depth-- }()
	if ctx.Depth > ctx.MaxDepth {
		path := append(append([]string(nil), ctx.ActivePath...), inst.Name)
		return nil, &DepthError{Max: ctx.MaxDepth, Path: path}
	}

	ctx.Active[inst.Ref] = true
	ctx.ActivePath = append(ctx.ActivePath, inst.Name)
	ctx.Visited[inst.Ref] = true
	defer func() {
		delete(ctx.Active, inst.Ref)
		ctx.ActivePath = ctx.ActivePath[:len(ctx.ActivePath)-1]
	}()

	node := b.newNode(inst, parent, via)
	b.tree.register(node)
	b.world.Scheduler.Step()

	for _, e := range b.index.Neighbors(inst.Ref) {
		if e.Connector == via || ctx.Visited[e.Other.Ref] {
			continue
		}
		child, err := b.Visit(e.Other, node, e.Connector, ctx)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}

	if b.deform {
		for _, c := range inst.Children {
			if c.Class != host.ClassBone || ctx.Visited[c.Ref] {
				continue
			}
			child, err := b.Visit(c, node, nil, ctx)
			if err != nil {
				return nil, err
			}
			if child != nil {
				node.Children = append(node.Children, child)
			}
		}
	}
	return node, nil
}

func (b *Builder) newNode(inst *host.Instance, parent *Node, via *host.Instance) *Node {
	n := &Node{
		Name:            inst.Name,
		Handle:          inst.Ref,
		Type:            ConnectorRoot,
		Parent:          parent,
		PlaybackEnabled: true,
		ExportEnabled:   true,
	}
	switch {
	case via != nil:
		n.Type = connectorTypeOf(via.Class)
		n.Connector = via.Ref
		n.ConnectorName = via.Name
		n.JointParentIsPrimaryEndpoint = parent != nil && via.Part0 != nil && via.Part0.Ref == parent.Handle
	case inst.Class == host.ClassBone && parent != nil:
		n.Type = ConnectorBone
	}
	return n
}

func activeChain(path []string, name string) []string {
	start := 0
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == name {
			start = i
			break
		}
	}
	chain := append([]string(nil), path[start:]...)
	return append(chain, name)
}

// ModelOf returns the nearest Model ancestor of inst, or inst itself when it
// has none.
func ModelOf(inst *host.Instance) *host.Instance {
	for p := inst; p != nil; p = p.Parent {
		if p.Class == host.ClassModel {
			return p
		}
	}
	return inst
}

// FindRootPart picks the root part of a model: a part named
// HumanoidRootPart if there is one, otherwise the first part that is not
// driven by any primary joint.
func FindRootPart(w *host.World, model *host.Instance) (*host.Instance, error) {
	driven := make(map[host.Ref]bool)
	var parts []*host.Instance
	w.Descendants(model, func(inst *host.Instance) bool {
		switch {
		case inst.Class == host.ClassPart:
			parts = append(parts, inst)
		case inst.Class == host.ClassMotor6D && inst.Part1 != nil:
			driven[inst.Part1.Ref] = true
		}
		return true
	})
	for _, p := range parts {
		if p.Name == "HumanoidRootPart" {
			return p, nil
		}
	}
	for _, p := range parts {
		if !driven[p.Ref] {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoRoot, model.Name)
}
