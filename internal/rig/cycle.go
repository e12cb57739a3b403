package rig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/rigbridge/internal/engine/host"
)

// Structural errors. Both are fatal for a build.
var (
	ErrCycle         = errors.New("rig cycle")
	ErrDepthExceeded = errors.New("rig depth exceeded")
)

// CycleKind says which hierarchy a cycle was found in.
type CycleKind string

const (
	CycleJoint CycleKind = "joint"
	CycleBone  CycleKind = "bone"
	CyclePath  CycleKind = "build path"
)

// CycleError names every member of a cycle in traversal order. For joint and
// build-path cycles the first member is repeated at the end.
type CycleError struct {
	Kind  CycleKind
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s cycle: %s", e.Kind, strings.Join(e.Chain, " -> "))
}

// Is matches ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// DepthError reports a build that went deeper than allowed.
type DepthError struct {
	Max  int
	Path []string
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("rig depth exceeded %d at %s", e.Max, strings.Join(e.Path, " -> "))
}

// Is matches ErrDepthExceeded.
func (e *DepthError) Is(target error) bool {
	return target == ErrDepthExceeded
}

// CheckJointCycles looks for a directed Part0 -> Part1 cycle among primary
// joints, starting at root and then at every other indexed endpoint. It uses
// a recursive depth-first search that keeps the current path so the error
// can name the whole cycle.
func CheckJointCycles(idx *JointGraphIndex, root *host.Instance) error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[host.Ref]int)
	var path []*host.Instance

	var visit func(inst *host.Instance) error
	visit = func(inst *host.Instance) error {
		color[inst.Ref] = gray
		path = append(path, inst)
		for _, joint := range idx.PrimaryJointsFrom(inst.Ref) {
			next := joint.Part1
			switch color[next.Ref] {
			case gray:
				return &CycleError{Kind: CycleJoint, Chain: cycleChain(path, next)}
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[inst.Ref] = black
		return nil
	}

	if root != nil {
		if err := visit(root); err != nil {
			return err
		}
	}
	for _, c := range idx.All() {
		if c.Class != host.ClassMotor6D || color[c.Part0.Ref] != white {
			continue
		}
		if err := visit(c.Part0); err != nil {
			return err
		}
	}
	return nil
}

// cycleChain returns the names from the first occurrence of back on path to
// the end, closed with back's name.
func cycleChain(path []*host.Instance, back *host.Instance) []string {
	start := 0
	for i, p := range path {
		if p == back {
			start = i
			break
		}
	}
	chain := make([]string, 0, len(path)-start+1)
	for _, p := range path[start:] {
		chain = append(chain, p.Name)
	}
	return append(chain, back.Name)
}

// CheckBoneCycles runs Kahn's topological sort over the bone parenting links
// reachable from scope. It is iterative, so arbitrarily deep bone chains are
// fine; any bone left unsorted lies on or below a cycle.
func CheckBoneCycles(w *host.World, scope *host.Instance) error {
	var bones []*host.Instance
	w.Descendants(scope, func(inst *host.Instance) bool {
		if inst.Class == host.ClassBone {
			bones = append(bones, inst)
		}
		return true
	})
	if len(bones) == 0 {
		return nil
	}

	inSet := make(map[host.Ref]bool, len(bones))
	for _, b := range bones {
		inSet[b.Ref] = true
	}
	indeg := make(map[host.Ref]int, len(bones))
	preds := make(map[host.Ref][]*host.Instance)
	for _, b := range bones {
		for _, c := range b.Children {
			if inSet[c.Ref] {
				indeg[c.Ref]++
				preds[c.Ref] = append(preds[c.Ref], b)
			}
		}
	}

	queue := make([]*host.Instance, 0, len(bones))
	for _, b := range bones {
		if indeg[b.Ref] == 0 {
			queue = append(queue, b)
		}
	}
	done := make(map[host.Ref]bool, len(bones))
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		done[b.Ref] = true
		w.Scheduler.Step()
		for _, c := range b.Children {
			if !inSet[c.Ref] {
				continue
			}
			indeg[c.Ref]--
			if indeg[c.Ref] == 0 {
				queue = append(queue, c)
			}
		}
	}
	if len(done) == len(bones) {
		return nil
	}

	// Walk predecessors among the unsorted bones until one repeats; every
	// unsorted bone has an unsorted predecessor, so this finds a cycle.
	var start *host.Instance
	for _, b := range bones {
		if !done[b.Ref] {
			start = b
			break
		}
	}
	pos := make(map[host.Ref]int)
	var walk []*host.Instance
	cur := start
	for {
		if i, ok := pos[cur.Ref]; ok {
			walk = walk[i:]
			break
		}
		pos[cur.Ref] = len(walk)
		walk = append(walk, cur)
		for _, p := range preds[cur.Ref] {
			if !done[p.Ref] {
				cur = p
				break
			}
		}
	}
	// walk runs against the parenting direction; report it forwards from the
	// bone where it closed.
	chain := make([]string, 0, len(walk)+1)
	chain = append(chain, walk[0].Name)
	for i := len(walk) - 1; i > 0; i-- {
		chain = append(chain, walk[i].Name)
	}
	chain = append(chain, walk[0].Name)
	return &CycleError{Kind: CycleBone, Chain: chain}
}
