package formats

import (
	"encoding/json"
	"fmt"
)

// EnvelopeVersion is the export envelope format version.
const EnvelopeVersion = 3

// EncodedNode is the export-only mirror of a rig node. Transforms are
// rounded component lists; identifiers are plain names.
type EncodedNode struct {
	PName           string         `json:"pname"`
	JName           string         `json:"jname,omitempty"`
	Transform       []float64      `json:"transform"`
	JointTransform0 []float64      `json:"jointtransform0,omitempty"`
	JointTransform1 []float64      `json:"jointtransform1,omitempty"`
	JointType       string         `json:"jointType,omitempty"`
	Aux             []string       `json:"aux,omitempty"`
	AuxJName        []string       `json:"auxJName,omitempty"`
	AuxTransform    [][]float64    `json:"auxTransform,omitempty"`
	Children        []*EncodedNode `json:"children"`
	IsDeformBone    bool           `json:"isDeformBone"`
}

// Walk visits n and its descendants depth-first.
func (n *EncodedNode) Walk(fn func(*EncodedNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the first node named pname, or nil.
func (n *EncodedNode) Find(pname string) *EncodedNode {
	var found *EncodedNode
	n.Walk(func(c *EncodedNode) {
		if found == nil && c.PName == pname {
			found = c
		}
	})
	return found
}

// PartAux is a coarse per-part fingerprint used to re-match renamed parts.
type PartAux struct {
	Size []float64 `json:"size"`
}

// Envelope is the rig export document.
type Envelope struct {
	RigName string             `json:"rigName"`
	Parts   []string           `json:"parts"`
	Rig     *EncodedNode       `json:"rig"`
	PartAux map[string]PartAux `json:"partAux"`
	Version int                `json:"version"`
}

// ParseEnvelope parses an export envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrWrongType, err)
	}
	if env.Rig == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, "rig")
	}
	return &env, nil
}
