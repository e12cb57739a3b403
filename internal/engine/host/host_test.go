package host

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/rigbridge/pkg/math"
)

const twoPartRig = `
name: Dummy
instances:
  - name: Hip
    class: Part
    cframe: [0, 3, 0]
    size: [2, 1, 1]
  - name: Spine
    class: MeshPart
    cframe: [0, 4, 0]
  - name: Waist
    class: Motor6D
    parent: Spine
    part0: Spine
    part1: Hip
    c0: [0, -0.5, 0]
    c1: [0, 0.5, 0]
  - name: Root
    class: Bone
    parent: Hip
    cframe: [0, 1, 0]
  - name: Tip
    class: Bone
    parent: Root
    cframe: [0, 2, 0]
`

func TestLoadWorld(t *testing.T) {
	w, model, err := LoadWorld(strings.NewReader(twoPartRig))
	require.NoError(t, err)
	assert.Equal(t, "Dummy", model.Name)
	assert.Equal(t, 6, w.Len())

	hip := model.FindChild("Hip")
	require.NotNil(t, hip)
	assert.Equal(t, ClassPart, hip.Class)
	assert.Equal(t, [3]float64{2, 1, 1}, hip.Size)
	assert.InDelta(t, 3.0, hip.CFrame.Pos.Y, 1e-12)

	waist := w.FindFirst(model, "Waist")
	require.NotNil(t, waist)
	assert.Equal(t, "Spine", waist.Parent.Name)
	assert.Same(t, hip, waist.Part1)
	assert.InDelta(t, -0.5, waist.C0.Pos.Y, 1e-12)

	got, ok := w.Get(hip.Ref)
	require.True(t, ok)
	assert.Same(t, hip, got)
}

func TestLoadWorld_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"unknown parent", "instances:\n  - {name: A, class: Part, parent: Nope}\n", ErrUnknownReference},
		{"duplicate id", "instances:\n  - {name: A, class: Part}\n  - {name: A, class: Part}\n", ErrDuplicateID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadWorld(strings.NewReader(tt.yaml))
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	_, _, err := LoadWorld(strings.NewReader("instances:\n  - {name: A, class: Gizmo}\n"))
	assert.Error(t, err)
}

func TestDescendants_SurvivesLoops(t *testing.T) {
	w := NewWorld()
	root := w.New("Root", ClassModel, nil)
	a := w.New("A", ClassBone, root)
	b := w.New("B", ClassBone, a)
	w.Link(b, a)
	w.Link(b, root)

	var names []string
	w.Descendants(root, func(i *Instance) bool {
		names = append(names, i.Name)
		return true
	})
	assert.Equal(t, []string{"Root", "A", "B"}, names)
}

func TestWorldCFrame_Bones(t *testing.T) {
	w, model, err := LoadWorld(strings.NewReader(twoPartRig))
	require.NoError(t, err)

	tip := w.FindFirst(model, "Tip")
	require.NotNil(t, tip)
	got := w.WorldCFrame(tip)
	assert.True(t, got.ApproxEqual(math.Translation(0, 6, 0), 1e-9), "got %v", got)

	hip := model.FindChild("Hip")
	assert.Equal(t, hip.CFrame, w.WorldCFrame(hip))
}

func TestScheduler_YieldsAtInterval(t *testing.T) {
	yields := 0
	s := &Scheduler{Every: 3, Yield: func() { yields++ }}
	for i := 0; i < 10; i++ {
		s.Step()
	}
	assert.Equal(t, 3, yields)

	var nilSched *Scheduler
	nilSched.Step()
}

func TestDestroy(t *testing.T) {
	w := NewWorld()
	root := w.New("Root", ClassModel, nil)
	part := w.New("Part", ClassPart, root)
	w.New("Bone", ClassBone, part)

	w.Destroy(part)
	assert.Equal(t, 1, w.Len())
	assert.Empty(t, root.Children)
	_, ok := w.Get(part.Ref)
	assert.False(t, ok)
	assert.Len(t, w.Instances(), 1)
}

func TestKeyframeSequence(t *testing.T) {
	seq := &KeyframeSequence{Keyframes: []*Keyframe{
		{Time: 1, Poses: []*Pose{{Name: "Hip", SubPoses: []*Pose{{Name: "Spine"}}}}},
		{Time: 0.5},
	}}
	assert.Equal(t, 1.0, seq.Duration())
	sorted := seq.Sorted()
	assert.Equal(t, 0.5, sorted[0].Time)
	assert.Equal(t, 1.0, seq.Keyframes[0].Time)
	assert.NotNil(t, seq.Keyframes[0].Find("Spine"))
	assert.Nil(t, seq.Keyframes[0].Find("Head"))
}
