package codec

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
	"github.com/Faultbox/rigbridge/internal/rig"
	"github.com/Faultbox/rigbridge/pkg/formats"
	"github.com/Faultbox/rigbridge/pkg/transport"
)

// ErrUndecodable is returned when no transport path produced JSON.
var ErrUndecodable = errors.New("payload could not be decoded")

// ErrUnencodable is returned when a structure could not be serialized.
var ErrUnencodable = errors.New("payload could not be encoded")

// EncodeBytes encodes the rig export envelope and compresses it.
func (c *Codec) EncodeBytes(w *host.World, tree *rig.RigTree, tc transport.Codec) ([]byte, error) {
	env, err := c.Encode(w, tree)
	if err != nil {
		return nil, err
	}
	data, ok := tc.Encode(env)
	if !ok {
		return nil, ErrUnencodable
	}
	return data, nil
}

// SerializeBytes flattens seq and compresses the payload.
func (c *Codec) SerializeBytes(seq *host.KeyframeSequence, tree *rig.RigTree, tc transport.Codec) ([]byte, error) {
	data, ok := tc.Encode(c.Serialize(seq, tree))
	if !ok {
		return nil, ErrUnencodable
	}
	return data, nil
}

// Deserialize decodes transported bytes into an animation payload. Recovered
// per-keyframe problems are logged and returned alongside the payload.
func (c *Codec) Deserialize(data []byte, isText bool, tc transport.Codec) (*formats.AnimationPayload, []formats.Issue, error) {
	raw, ok := tc.Decode(data, isText)
	if !ok {
		return nil, nil, ErrUndecodable
	}
	p, issues, err := formats.ParseAnimation(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing animation: %w", err)
	}
	for _, is := range issues {
		logger.Warn("skipped part of animation payload",
			zap.Int("keyframe", is.Keyframe), zap.String("node", is.Node), zap.Error(is.Err))
	}
	return p, issues, nil
}

// DecodeEnvelope decodes transported bytes into an export envelope.
func DecodeEnvelope(data []byte, isText bool, tc transport.Codec) (*formats.Envelope, error) {
	raw, ok := tc.Decode(data, isText)
	if !ok {
		return nil, ErrUndecodable
	}
	return formats.ParseEnvelope(raw)
}
