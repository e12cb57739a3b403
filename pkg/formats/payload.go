// Package formats defines the wire structures exchanged with the external
// authoring tool: the animation payload and the rig export envelope.
package formats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Payload errors.
var (
	ErrMissingField = errors.New("missing required field")
	ErrWrongType    = errors.New("wrong field type")
	ErrBadKeyframe  = errors.New("malformed keyframe")
	ErrShortPose    = errors.New("pose has fewer than 12 components")
	ErrBadPose      = errors.New("malformed pose record")
)

// PoseComponents is the number of floats in a pose transform.
const PoseComponents = 12

// PoseShape identifies which of the accepted JSON layouts a record used.
type PoseShape int

const (
	ShapeTuple  PoseShape = iota // [[12 floats], style?, direction?]
	ShapeObject                  // {components: [...], easingStyle?, easingDirection?}
	ShapeBare                    // [12 floats]
)

// String returns the shape name.
func (s PoseShape) String() string {
	switch s {
	case ShapeTuple:
		return "tuple"
	case ShapeObject:
		return "object"
	case ShapeBare:
		return "bare"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// PoseRecord is the canonical form of one node's pose in a keyframe.
// Easing names are kept as sent; interpretation happens when loading.
type PoseRecord struct {
	Components      []float64
	EasingStyle     string
	EasingDirection string
	Shape           PoseShape
}

// MarshalJSON always writes the tuple shape.
func (p PoseRecord) MarshalJSON() ([]byte, error) {
	tuple := []any{p.Components}
	if p.EasingStyle != "" || p.EasingDirection != "" {
		tuple = append(tuple, p.EasingStyle, p.EasingDirection)
	}
	return json.Marshal(tuple)
}

// UnmarshalJSON accepts any of the three record shapes.
func (p *PoseRecord) UnmarshalJSON(data []byte) error {
	rec, err := ParsePoseRecord(data)
	if err != nil {
		return err
	}
	*p = rec
	return nil
}

// ParsePoseRecord converts one raw JSON pose into a PoseRecord.
func ParsePoseRecord(raw json.RawMessage) (PoseRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return PoseRecord{}, ErrBadPose
	}

	var rec PoseRecord
	switch raw[0] {
	case '{':
		var obj struct {
			Components      []float64 `json:"components"`
			EasingStyle     string    `json:"easingStyle"`
			EasingDirection string    `json:"easingDirection"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return PoseRecord{}, fmt.Errorf("%w: %v", ErrBadPose, err)
		}
		rec = PoseRecord{
			Components:      obj.Components,
			EasingStyle:     obj.EasingStyle,
			EasingDirection: obj.EasingDirection,
			Shape:           ShapeObject,
		}

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return PoseRecord{}, fmt.Errorf("%w: %v", ErrBadPose, err)
		}
		if len(items) > 0 && bytes.HasPrefix(bytes.TrimSpace(items[0]), []byte("[")) {
			rec.Shape = ShapeTuple
			if err := json.Unmarshal(items[0], &rec.Components); err != nil {
				return PoseRecord{}, fmt.Errorf("%w: %v", ErrBadPose, err)
			}
			if len(items) > 1 {
				rec.EasingStyle = easingName(items[1])
			}
			if len(items) > 2 {
				rec.EasingDirection = easingName(items[2])
			}
		} else {
			rec.Shape = ShapeBare
			if err := json.Unmarshal(raw, &rec.Components); err != nil {
				return PoseRecord{}, fmt.Errorf("%w: %v", ErrBadPose, err)
			}
		}

	default:
		return PoseRecord{}, ErrBadPose
	}

	if len(rec.Components) < PoseComponents {
		return PoseRecord{}, fmt.Errorf("%w: got %d", ErrShortPose, len(rec.Components))
	}
	rec.Components = rec.Components[:PoseComponents]
	return rec, nil
}

// easingName returns a tuple easing slot as text. Non-string values are kept
// as their JSON source so the loader reports them as unknown names.
func easingName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return string(raw)
	}
	return name
}

// KeyframeRecord is one timestamped set of poses keyed by node name.
type KeyframeRecord struct {
	Time  float64               `json:"t"`
	Poses map[string]PoseRecord `json:"kf"`
}

// MarkerRecord is a named event on the timeline.
type MarkerRecord struct {
	Time  float64 `json:"t"`
	Name  string  `json:"name"`
	Value string  `json:"value,omitempty"`
}

// AnimationPayload is the flattened animation exchanged over the wire.
type AnimationPayload struct {
	Duration        float64          `json:"t"`
	Keyframes       []KeyframeRecord `json:"kfs"`
	IsDeformBoneRig bool             `json:"is_deform_bone_rig"`
	Markers         []MarkerRecord   `json:"markers,omitempty"`
	Loop            bool             `json:"loop,omitempty"`
}

// Issue describes a recoverable problem found while parsing a payload.
type Issue struct {
	Keyframe int    // keyframe index
	Node     string // empty when the whole keyframe was skipped
	Err      error
}

func (i Issue) Error() string {
	if i.Node == "" {
		return fmt.Sprintf("keyframe %d: %v", i.Keyframe, i.Err)
	}
	return fmt.Sprintf("keyframe %d node %q: %v", i.Keyframe, i.Node, i.Err)
}

// ParseAnimation parses a decoded JSON payload. Structural problems at the
// top level are returned as errors; a malformed keyframe or pose is skipped
// and reported as an Issue.
func ParseAnimation(data []byte) (*AnimationPayload, []Issue, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("%w: payload is not an object: %v", ErrWrongType, err)
	}

	p := &AnimationPayload{}
	if err := requireField(top, "t", &p.Duration); err != nil {
		return nil, nil, err
	}
	var rawKeyframes []json.RawMessage
	if err := requireField(top, "kfs", &rawKeyframes); err != nil {
		return nil, nil, err
	}
	if err := optionalField(top, "is_deform_bone_rig", &p.IsDeformBoneRig); err != nil {
		return nil, nil, err
	}
	if err := optionalField(top, "markers", &p.Markers); err != nil {
		return nil, nil, err
	}
	if err := optionalField(top, "loop", &p.Loop); err != nil {
		return nil, nil, err
	}

	var issues []Issue
	for i, raw := range rawKeyframes {
		var kf struct {
			Time  *float64                   `json:"t"`
			Poses map[string]json.RawMessage `json:"kf"`
		}
		if err := json.Unmarshal(raw, &kf); err != nil {
			issues = append(issues, Issue{Keyframe: i, Err: fmt.Errorf("%w: %v", ErrBadKeyframe, err)})
			continue
		}
		if kf.Time == nil || kf.Poses == nil {
			issues = append(issues, Issue{Keyframe: i, Err: fmt.Errorf("%w: needs t and kf", ErrBadKeyframe)})
			continue
		}

		rec := KeyframeRecord{Time: *kf.Time, Poses: make(map[string]PoseRecord, len(kf.Poses))}
		for name, rawPose := range kf.Poses {
			pose, err := ParsePoseRecord(rawPose)
			if err != nil {
				issues = append(issues, Issue{Keyframe: i, Node: name, Err: err})
				continue
			}
			rec.Poses[NormalizeName(name)] = pose
		}
		p.Keyframes = append(p.Keyframes, rec)
	}
	return p, issues, nil
}

// NormalizeName returns the NFC form used to key node names.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

func requireField(top map[string]json.RawMessage, key string, dst any) error {
	raw, ok := top[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrWrongType, key, err)
	}
	return nil
}

func optionalField(top map[string]json.RawMessage, key string, dst any) error {
	raw, ok := top[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return requireField(top, key, dst)
}

// Marshal encodes the payload as JSON.
func (p *AnimationPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
