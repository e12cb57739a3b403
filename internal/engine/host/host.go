// Package host models the 3D engine side of a rig: instances addressed by
// opaque references, the side table that owns them, and the engine's native
// keyframe/pose objects.
package host

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/Faultbox/rigbridge/pkg/math"
)

// Ref is an opaque handle to an engine instance. Holders of a Ref never own
// the instance; the World does.
type Ref = uuid.UUID

// NilRef is the zero handle.
var NilRef = uuid.Nil

// Class is an engine instance class.
type Class int

const (
	ClassModel Class = iota
	ClassPart
	ClassMotor6D
	ClassWeld
	ClassWeldConstraint
	ClassAnimationConstraint
	ClassBone
)

var classNames = []string{
	ClassModel:               "Model",
	ClassPart:                "Part",
	ClassMotor6D:             "Motor6D",
	ClassWeld:                "Weld",
	ClassWeldConstraint:      "WeldConstraint",
	ClassAnimationConstraint: "AnimationConstraint",
	ClassBone:                "Bone",
}

// String returns the class name.
func (c Class) String() string {
	if int(c) >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Unknown(%d)", int(c))
}

// ParseClass returns the class with the given name (case-insensitive).
func ParseClass(s string) (Class, error) {
	for i, name := range classNames {
		if strings.EqualFold(name, s) {
			return Class(i), nil
		}
	}
	if strings.EqualFold(s, "MeshPart") {
		return ClassPart, nil
	}
	return 0, fmt.Errorf("unknown instance class %q", s)
}

// IsConnector reports whether instances of c link two parts.
func (c Class) IsConnector() bool {
	switch c {
	case ClassMotor6D, ClassWeld, ClassWeldConstraint, ClassAnimationConstraint:
		return true
	}
	return false
}

// Instance is one engine object.
type Instance struct {
	Ref      Ref
	Name     string
	Class    Class
	Parent   *Instance
	Children []*Instance

	// CFrame is the world transform for parts and the parent-relative
	// transform for bones.
	CFrame math.Transform
	Size   [3]float64

	// Connector endpoints and their attachment offsets.
	Part0, Part1 *Instance
	C0, C1       math.Transform

	// Transform is the animated offset of a Motor6D or bone.
	Transform math.Transform
}

// String returns "Name (Class)".
func (i *Instance) String() string {
	return fmt.Sprintf("%s (%s)", i.Name, i.Class)
}

// FindChild returns the first direct child with the given name.
func (i *Instance) FindChild(name string) *Instance {
	for _, c := range i.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Scheduler yields to the host's cooperative scheduler every Every steps.
// A nil Scheduler never yields.
type Scheduler struct {
	Every int
	Yield func()

	n int
}

// DefaultYieldEvery is the step count between yields.
const DefaultYieldEvery = 1000

// Step counts one unit of work and yields when the interval is reached.
func (s *Scheduler) Step() {
	if s == nil || s.Every <= 0 {
		return
	}
	s.n++
	if s.n%s.Every != 0 {
		return
	}
	if s.Yield != nil {
		s.Yield()
	} else {
		runtime.Gosched()
	}
}

// World is the side table mapping references to live instances.
type World struct {
	Scheduler Scheduler

	instances map[Ref]*Instance
	order     []*Instance
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{
		Scheduler: Scheduler{Every: DefaultYieldEvery},
		instances: make(map[Ref]*Instance),
	}
}

// New creates an instance parented to parent (which may be nil). Transforms
// default to identity.
func (w *World) New(name string, class Class, parent *Instance) *Instance {
	inst := &Instance{
		Ref:       uuid.New(),
		Name:      name,
		Class:     class,
		CFrame:    math.Identity(),
		C0:        math.Identity(),
		C1:        math.Identity(),
		Transform: math.Identity(),
	}
	w.instances[inst.Ref] = inst
	w.order = append(w.order, inst)
	if parent != nil {
		w.SetParent(inst, parent)
	}
	return inst
}

// SetParent reparents inst, keeping both sides of the link consistent.
func (w *World) SetParent(inst, parent *Instance) {
	if inst.Parent != nil {
		kids := inst.Parent.Children
		for i, c := range kids {
			if c == inst {
				inst.Parent.Children = append(kids[:i:i], kids[i+1:]...)
				break
			}
		}
	}
	inst.Parent = parent
	if parent != nil {
		parent.Children = append(parent.Children, inst)
	}
}

// Link appends child to parent's children without touching child.Parent.
// Engines with broken replication can report such one-sided links; rig
// construction has to survive them.
func (w *World) Link(parent, child *Instance) {
	parent.Children = append(parent.Children, child)
}

// Get resolves a reference.
func (w *World) Get(ref Ref) (*Instance, bool) {
	inst, ok := w.instances[ref]
	return inst, ok
}

// Len returns the number of live instances.
func (w *World) Len() int {
	return len(w.instances)
}

// Destroy removes inst and its descendants from the world.
func (w *World) Destroy(inst *Instance) {
	w.Descendants(inst, func(d *Instance) bool {
		delete(w.instances, d.Ref)
		return true
	})
	w.SetParent(inst, nil)
	kept := w.order[:0]
	for _, i := range w.order {
		if _, ok := w.instances[i.Ref]; ok {
			kept = append(kept, i)
		}
	}
	w.order = kept
}

// Instances returns all live instances in creation order.
func (w *World) Instances() []*Instance {
	out := make([]*Instance, len(w.order))
	copy(out, w.order)
	return out
}

// Descendants walks root and everything below it depth-first in child order,
// visiting each instance once even if child links loop. fn returning false
// stops the walk.
func (w *World) Descendants(root *Instance, fn func(*Instance) bool) {
	if root == nil {
		return
	}
	seen := map[Ref]bool{root.Ref: true}
	stack := []*Instance{root}
	for len(stack) > 0 {
		inst := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		w.Scheduler.Step()
		if !fn(inst) {
			return
		}
		for i := len(inst.Children) - 1; i >= 0; i-- {
			c := inst.Children[i]
			if !seen[c.Ref] {
				seen[c.Ref] = true
				stack = append(stack, c)
			}
		}
	}
}

// FindFirst returns the first descendant of root with the given name.
func (w *World) FindFirst(root *Instance, name string) *Instance {
	var found *Instance
	w.Descendants(root, func(i *Instance) bool {
		if i.Name == name {
			found = i
			return false
		}
		return true
	})
	return found
}

// maxBoneChain bounds WorldCFrame's walk up parent links.
const maxBoneChain = 4096

// WorldCFrame returns the world transform of inst. Bones compose their
// parent-relative CFrame and animated Transform up to the nearest part.
func (w *World) WorldCFrame(inst *Instance) math.Transform {
	if inst.Class != ClassBone {
		return inst.CFrame
	}
	chain := []*Instance{}
	cur := inst
	for cur != nil && cur.Class == ClassBone && len(chain) < maxBoneChain {
		chain = append(chain, cur)
		cur = cur.Parent
	}
	base := math.Identity()
	if cur != nil && cur.Class != ClassBone {
		base = cur.CFrame
	}
	for i := len(chain) - 1; i >= 0; i-- {
		base = base.Mul(chain[i].CFrame).Mul(chain[i].Transform)
	}
	return base
}
