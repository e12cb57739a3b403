package host

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/rigbridge/pkg/math"
)

// Fixture errors.
var (
	ErrUnknownReference = errors.New("unknown instance reference")
	ErrDuplicateID      = errors.New("duplicate instance id")
)

// rigFile is the YAML layout of a rig fixture.
type rigFile struct {
	Name      string        `yaml:"name"`
	Instances []instanceDef `yaml:"instances"`
}

type instanceDef struct {
	ID        string    `yaml:"id"` // defaults to name
	Name      string    `yaml:"name"`
	Class     string    `yaml:"class"`
	Parent    string    `yaml:"parent"`
	Part0     string    `yaml:"part0"`
	Part1     string    `yaml:"part1"`
	CFrame    []float64 `yaml:"cframe"`
	C0        []float64 `yaml:"c0"`
	C1        []float64 `yaml:"c1"`
	Transform []float64 `yaml:"transform"`
	Size      []float64 `yaml:"size"`
	Links     []string  `yaml:"links"` // extra one-sided child links
}

func (d instanceDef) id() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Name
}

// LoadWorld reads a YAML rig fixture and returns the world and the model
// instance holding the rig. Transforms are 12-component lists; a position-only
// list of 3 is also accepted.
func LoadWorld(r io.Reader) (*World, *Instance, error) {
	var f rigFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("decoding rig fixture: %w", err)
	}
	if f.Name == "" {
		f.Name = "Rig"
	}

	w := NewWorld()
	model := w.New(f.Name, ClassModel, nil)

	byID := make(map[string]*Instance, len(f.Instances))
	for i, def := range f.Instances {
		class, err := ParseClass(def.Class)
		if err != nil {
			return nil, nil, fmt.Errorf("instance %d (%s): %w", i, def.Name, err)
		}
		if _, dup := byID[def.id()]; dup {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateID, def.id())
		}
		inst := w.New(def.Name, class, nil)
		if inst.CFrame, err = fixtureTransform(def.CFrame); err != nil {
			return nil, nil, fmt.Errorf("instance %s cframe: %w", def.Name, err)
		}
		if inst.C0, err = fixtureTransform(def.C0); err != nil {
			return nil, nil, fmt.Errorf("instance %s c0: %w", def.Name, err)
		}
		if inst.C1, err = fixtureTransform(def.C1); err != nil {
			return nil, nil, fmt.Errorf("instance %s c1: %w", def.Name, err)
		}
		if inst.Transform, err = fixtureTransform(def.Transform); err != nil {
			return nil, nil, fmt.Errorf("instance %s transform: %w", def.Name, err)
		}
		copy(inst.Size[:], def.Size)
		byID[def.id()] = inst
	}

	resolve := func(ref string) (*Instance, error) {
		if ref == "" {
			return nil, nil
		}
		if ref == f.Name {
			return model, nil
		}
		inst, ok := byID[ref]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownReference, ref)
		}
		return inst, nil
	}

	// Parents are linked in declaration order so child order is stable.
	for _, def := range f.Instances {
		inst := byID[def.id()]
		parent, err := resolve(def.Parent)
		if err != nil {
			return nil, nil, fmt.Errorf("%s parent: %w", def.Name, err)
		}
		if parent == nil {
			parent = model
		}
		w.SetParent(inst, parent)

		if inst.Part0, err = resolve(def.Part0); err != nil {
			return nil, nil, fmt.Errorf("%s part0: %w", def.Name, err)
		}
		if inst.Part1, err = resolve(def.Part1); err != nil {
			return nil, nil, fmt.Errorf("%s part1: %w", def.Name, err)
		}
		for _, l := range def.Links {
			child, err := resolve(l)
			if err != nil {
				return nil, nil, fmt.Errorf("%s link: %w", def.Name, err)
			}
			w.Link(inst, child)
		}
	}
	return w, model, nil
}

// LoadWorldFile reads a rig fixture from disk.
func LoadWorldFile(path string) (*World, *Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening rig fixture: %w", err)
	}
	defer f.Close()
	return LoadWorld(f)
}

func fixtureTransform(c []float64) (math.Transform, error) {
	switch len(c) {
	case 0:
		return math.Identity(), nil
	case 3:
		return math.Translation(c[0], c[1], c[2]), nil
	default:
		return math.FromComponents(c)
	}
}
