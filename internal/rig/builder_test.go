package rig

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
)

// motor links part0 -> part1 with a Motor6D parented to part0.
func motor(w *host.World, name string, part0, part1 *host.Instance) *host.Instance {
	m := w.New(name, host.ClassMotor6D, part0)
	m.Part0, m.Part1 = part0, part1
	return m
}

// chainRig builds a model with n parts P0..Pn-1 linked P(i) -> P(i+1).
func chainRig(n int) (*host.World, *host.Instance, []*host.Instance) {
	w := host.NewWorld()
	model := w.New("Chain", host.ClassModel, nil)
	parts := make([]*host.Instance, n)
	for i := range parts {
		parts[i] = w.New(fmt.Sprintf("P%d", i), host.ClassPart, model)
	}
	for i := 1; i < n; i++ {
		motor(w, fmt.Sprintf("J%d", i), parts[i-1], parts[i])
	}
	return w, model, parts
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	t.Cleanup(logger.SetLogger(zap.New(core)))
	return logs
}

func TestBuild_Acyclic(t *testing.T) {
	w, model, parts := chainRig(4)
	// A branch and a weld hanging off the middle.
	arm := w.New("Arm", host.ClassPart, model)
	motor(w, "Shoulder", parts[1], arm)
	acc := w.New("Hat", host.ClassPart, model)
	weld := w.New("HatWeld", host.ClassWeld, parts[3])
	weld.Part0, weld.Part1 = parts[3], acc

	tree, err := Build(w, parts[0], Options{})
	require.NoError(t, err)
	assert.Equal(t, "Chain", tree.Name)
	assert.Equal(t, 6, tree.Len())
	assert.Equal(t, "P0", tree.Root.Name)
	assert.Equal(t, ConnectorRoot, tree.Root.Type)

	seen := map[host.Ref]bool{}
	tree.Walk(func(n *Node) bool {
		assert.False(t, seen[n.Handle], "node %s built twice", n.Name)
		seen[n.Handle] = true
		return true
	})
	assert.Len(t, seen, 6)

	hat, ok := tree.Node("Hat")
	require.True(t, ok)
	assert.Equal(t, ConnectorAuxiliaryWeld, hat.Type)
	assert.Equal(t, "HatWeld", hat.ConnectorName)
	assert.Equal(t, []string{"P0", "P1", "P2", "P3", "Hat"}, hat.Path())

	p1, _ := tree.Node("P1")
	require.Len(t, p1.Children, 2)
	assert.Equal(t, ConnectorPrimaryJoint, p1.Children[0].Type)
	assert.True(t, p1.Children[0].JointParentIsPrimaryEndpoint)

	byHandle, ok := tree.NodeByHandle(arm.Ref)
	require.True(t, ok)
	assert.Equal(t, "Arm", byHandle.Name)
}

func TestBuild_ReversedConnector(t *testing.T) {
	w := host.NewWorld()
	model := w.New("Dummy", host.ClassModel, nil)
	hip := w.New("Hip", host.ClassPart, model)
	spine := w.New("Spine", host.ClassPart, model)
	motor(w, "Waist", spine, hip) // stored Spine -> Hip

	tree, err := Build(w, hip, Options{})
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 1)
	s := tree.Root.Children[0]
	assert.Equal(t, "Spine", s.Name)
	assert.Equal(t, ConnectorPrimaryJoint, s.Type)
	assert.False(t, s.JointParentIsPrimaryEndpoint)
	assert.Same(t, tree.Root, s.Parent)
}

func TestBuild_DiamondPruned(t *testing.T) {
	w := host.NewWorld()
	model := w.New("Diamond", host.ClassModel, nil)
	a := w.New("A", host.ClassPart, model)
	b := w.New("B", host.ClassPart, model)
	c := w.New("C", host.ClassPart, model)
	d := w.New("D", host.ClassPart, model)
	motor(w, "AB", a, b)
	motor(w, "AC", a, c)
	motor(w, "BD", b, d)
	motor(w, "CD", c, d)

	tree, err := Build(w, a, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())

	dn, ok := tree.Node("D")
	require.True(t, ok)
	assert.Equal(t, "B", dn.Parent.Name)
	cn, _ := tree.Node("C")
	assert.Empty(t, cn.Children)
}

func TestBuild_JointCycle(t *testing.T) {
	w, _, parts := chainRig(3)
	motor(w, "Back", parts[2], parts[0])

	_, err := Build(w, parts[0], Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CycleJoint, ce.Kind)
	assert.Equal(t, []string{"P0", "P1", "P2", "P0"}, ce.Chain)
	assert.Equal(t, "joint cycle: P0 -> P1 -> P2 -> P0", err.Error())
}

func TestBuild_JointCycleOffRoot(t *testing.T) {
	w, model, parts := chainRig(2)
	x := w.New("X", host.ClassPart, model)
	y := w.New("Y", host.ClassPart, model)
	motor(w, "XY", x, y)
	motor(w, "YX", y, x)

	_, err := Build(w, parts[0], Options{})
	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"X", "Y", "X"}, ce.Chain)
}

func TestBuild_BoneCycle(t *testing.T) {
	w := host.NewWorld()
	model := w.New("Skel", host.ClassModel, nil)
	root := w.New("Root", host.ClassPart, model)
	a := w.New("A", host.ClassBone, root)
	b := w.New("B", host.ClassBone, a)
	c := w.New("C", host.ClassBone, b)
	w.Link(c, a)

	_, err := Build(w, root, Options{Deform: true})
	var ce *CycleError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, CycleBone, ce.Kind)
	assert.Equal(t, []string{"A", "B", "C", "A"}, ce.Chain)
}

func TestCheckBoneCycles_DeepChain(t *testing.T) {
	w := host.NewWorld()
	w.Scheduler.Every = 0
	model := w.New("Deep", host.ClassModel, nil)
	parent := w.New("Root", host.ClassPart, model)
	for i := 0; i < 100000; i++ {
		parent = w.New(fmt.Sprintf("B%d", i), host.ClassBone, parent)
	}
	assert.NoError(t, CheckBoneCycles(w, model))
}

func TestBuild_DepthExceeded(t *testing.T) {
	w, _, parts := chainRig(6)

	_, err := Build(w, parts[0], Options{MaxDepth: 4})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDepthExceeded))
	var de *DepthError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 4, de.Max)
	assert.Equal(t, []string{"P0", "P1", "P2", "P3", "P4"}, de.Path)

	tree, err := Build(w, parts[0], Options{MaxDepth: 6})
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Len())
}

func TestVisit_ActivePathRevisit(t *testing.T) {
	w, _, parts := chainRig(2)
	b := &Builder{world: w, index: NewJointGraphIndex(w, ModelOf(parts[0])), tree: newRigTree("Chain")}
	ctx := NewBuildContext(0)
	ctx.Active[parts[0].Ref] = true
	ctx.ActivePath = []string{"P0", "P1"}

	_, err := b.Visit(parts[0], nil, nil, ctx)
	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CyclePath, ce.Kind)
	assert.Equal(t, []string{"P0", "P1", "P0"}, ce.Chain)
}

func TestBuild_DeformBones(t *testing.T) {
	w, model, err := host.LoadWorld(strings.NewReader(`
name: Dummy
instances:
  - {name: Hip, class: Part}
  - {name: Spine, class: Part}
  - {name: Waist, class: Motor6D, parent: Spine, part0: Spine, part1: Hip}
  - {name: Root, class: Bone, parent: Hip}
  - {name: Tip, class: Bone, parent: Root}
`))
	require.NoError(t, err)
	hip := w.FindFirst(model, "Hip")

	rigid, err := Build(w, hip, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, rigid.Len())
	assert.False(t, rigid.IsDeformRig)

	deform, err := Build(w, hip, Options{Deform: true})
	require.NoError(t, err)
	assert.Equal(t, 4, deform.Len())
	assert.True(t, deform.IsDeformRig)
	tip, ok := deform.Node("Tip")
	require.True(t, ok)
	assert.True(t, tip.IsDeformBone())
	assert.Equal(t, host.NilRef, tip.Connector)
	assert.Equal(t, "Root", tip.Parent.Name)
}

func TestBuild_DuplicateNames(t *testing.T) {
	logs := observe(t)

	w := host.NewWorld()
	model := w.New("Dup", host.ClassModel, nil)
	root := w.New("Root", host.ClassPart, model)
	hand := w.New("Hand", host.ClassPart, model)
	motor(w, "Wrist", root, hand)
	bone := w.New("Hand", host.ClassBone, root)
	w.New("Hand", host.ClassBone, root)

	tree, err := Build(w, root, Options{Deform: true})
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())

	n, ok := tree.Node("Hand")
	require.True(t, ok)
	assert.Same(t, bone, mustGet(t, w, n.Handle))
	assert.Equal(t, []string{"Hand"}, tree.DuplicateNames())

	warned := logs.FilterMessage("duplicate node name in rig")
	assert.Equal(t, 1, warned.Len())
}

func TestJointGraphIndex_DuplicateConnector(t *testing.T) {
	logs := observe(t)

	w := host.NewWorld()
	model := w.New("Dup", host.ClassModel, nil)
	a := w.New("A", host.ClassPart, model)
	b := w.New("B", host.ClassPart, model)
	c := w.New("C", host.ClassPart, model)
	first := motor(w, "Joint", a, b)
	second := motor(w, "Joint", a, c)

	idx := NewJointGraphIndex(w, model)
	assert.Equal(t, []*host.Instance{first}, idx.All())
	assert.Equal(t, []*host.Instance{second}, idx.Excluded())
	assert.Empty(t, idx.Connectors(c.Ref))
	require.Len(t, idx.Neighbors(b.Ref), 1)
	assert.Same(t, a, idx.Neighbors(b.Ref)[0].Other)
	assert.Equal(t, 1, logs.FilterMessage("ambiguous connector name, ignoring duplicate").Len())

	tree, err := Build(w, a, Options{})
	require.NoError(t, err)
	_, ok := tree.Node("C")
	assert.False(t, ok)
}

func TestFindRootPart(t *testing.T) {
	w := host.NewWorld()
	model := w.New("Dummy", host.ClassModel, nil)
	hip := w.New("Hip", host.ClassPart, model)
	spine := w.New("Spine", host.ClassPart, model)
	motor(w, "Waist", spine, hip)

	got, err := FindRootPart(w, model)
	require.NoError(t, err)
	assert.Same(t, spine, got)

	hrp := w.New("HumanoidRootPart", host.ClassPart, model)
	got, err = FindRootPart(w, model)
	require.NoError(t, err)
	assert.Same(t, hrp, got)

	_, err = FindRootPart(w, w.New("Empty", host.ClassModel, nil))
	assert.True(t, errors.Is(err, ErrNoRoot))
}

func TestRigTree_Markers(t *testing.T) {
	tree := newRigTree("T")
	tree.AddMarker(Marker{Time: 1, Name: "b"})
	tree.AddMarker(Marker{Time: 0.5, Name: "a"})
	tree.AddMarker(Marker{Time: 2, Name: "c"})
	var names []string
	for _, m := range tree.Markers {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	tree.Duration = 2
	tree.ClearAnimation()
	assert.Empty(t, tree.Markers)
	assert.Zero(t, tree.Duration)
}

func mustGet(t *testing.T, w *host.World, ref host.Ref) *host.Instance {
	t.Helper()
	inst, ok := w.Get(ref)
	require.True(t, ok)
	return inst
}
