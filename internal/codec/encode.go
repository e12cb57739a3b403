package codec

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
	"github.com/Faultbox/rigbridge/internal/rig"
	"github.com/Faultbox/rigbridge/pkg/formats"
	"github.com/Faultbox/rigbridge/pkg/math"
)

// ErrStaleHandle is returned when a node's engine instance no longer exists.
var ErrStaleHandle = errors.New("rig node refers to a destroyed instance")

// usedNames hands out connector export names. Primary connector names are
// reserved as they are; auxiliary connector names get a numeric suffix on
// collision. Part names are never renamed.
type usedNames map[string]bool

func (u usedNames) reserve(name string) string {
	u[name] = true
	return name
}

func (u usedNames) unique(name string) string {
	if !u[name] {
		return u.reserve(name)
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", name, i)
		if !u[candidate] {
			return u.reserve(candidate)
		}
	}
}

type encoder struct {
	world *host.World
	sched *host.Scheduler
	env   *formats.Envelope
	used  usedNames
}

// Encode flattens tree into an export envelope using the live transforms in
// w. Joint halves are ordered parent-relative first whatever direction the
// connector is stored in. Leaf auxiliary welds fold into their parent's aux
// lists, part name and uniquified weld name side by side. Subtrees with export disabled are left out.
func (c *Codec) Encode(w *host.World, tree *rig.RigTree) (*formats.Envelope, error) {
	if tree == nil || tree.Root == nil {
		return nil, ErrNoTree
	}
	e := &encoder{
		world: w,
		sched: c.Scheduler,
		env: &formats.Envelope{
			RigName: tree.Name,
			Parts:   []string{},
			PartAux: make(map[string]formats.PartAux),
			Version: formats.EnvelopeVersion,
		},
		used: make(usedNames),
	}

	// Primary connectors claim their names before any auxiliary one.
	tree.Walk(func(n *rig.Node) bool {
		if n.Type == rig.ConnectorPrimaryJoint {
			e.used.reserve(n.ConnectorName)
		}
		return n.ExportEnabled
	})

	root, err := e.node(tree.Root)
	if err != nil {
		return nil, err
	}
	e.env.Rig = root
	return e.env, nil
}

func (e *encoder) instance(ref host.Ref, name string) (*host.Instance, error) {
	inst, ok := e.world.Get(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, name)
	}
	return inst, nil
}

// addPart lists a part. The first part of a given name keeps the fingerprint.
func (e *encoder) addPart(name string, inst *host.Instance) {
	e.env.Parts = append(e.env.Parts, name)
	if _, ok := e.env.PartAux[name]; ok {
		return
	}
	e.env.PartAux[name] = formats.PartAux{Size: []float64{
		math.Round4(inst.Size[0]), math.Round4(inst.Size[1]), math.Round4(inst.Size[2]),
	}}
}

func (e *encoder) node(n *rig.Node) (*formats.EncodedNode, error) {
	e.sched.Step()
	inst, err := e.instance(n.Handle, n.Name)
	if err != nil {
		return nil, err
	}

	out := &formats.EncodedNode{
		PName:        n.Name,
		Transform:    e.world.WorldCFrame(inst).Rounded(),
		Children:     []*formats.EncodedNode{},
		IsDeformBone: n.IsDeformBone(),
	}

	switch n.Type {
	case rig.ConnectorRoot:
		e.addPart(n.Name, inst)

	case rig.ConnectorBone:
		out.JointType = host.ClassBone.String()
		out.JointTransform0 = inst.CFrame.Rounded()
		out.JointTransform1 = math.Identity().Rounded()

	default:
		e.addPart(n.Name, inst)
		conn, err := e.instance(n.Connector, n.ConnectorName)
		if err != nil {
			return nil, err
		}
		c0, c1 := conn.C0, conn.C1
		if !n.JointParentIsPrimaryEndpoint {
			c0, c1 = c1, c0
		}
		out.JointType = conn.Class.String()
		out.JointTransform0 = c0.Rounded()
		out.JointTransform1 = c1.Rounded()
		if n.Type == rig.ConnectorPrimaryJoint {
			out.JName = n.ConnectorName
		} else {
			out.JName = e.used.unique(n.ConnectorName)
		}
	}

	for _, child := range n.Children {
		if !child.ExportEnabled {
			logger.Debug("export disabled, skipping subtree", zap.String("node", child.Name))
			continue
		}
		if child.Type == rig.ConnectorAuxiliaryWeld && len(child.Children) == 0 {
			aux, err := e.instance(child.Handle, child.Name)
			if err != nil {
				return nil, err
			}
			out.Aux = append(out.Aux, child.Name)
			out.AuxJName = append(out.AuxJName, e.used.unique(child.ConnectorName))
			out.AuxTransform = append(out.AuxTransform, e.world.WorldCFrame(aux).Rounded())
			e.addPart(child.Name, aux)
			continue
		}
		enc, err := e.node(child)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, enc)
	}
	return out, nil
}
