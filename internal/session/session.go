// Package session owns the active rig and is the entry point for callers
// outside the core: selecting a rig, loading and playing animations, and
// moving payloads to and from the authoring tool.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/bridge"
	"github.com/Faultbox/rigbridge/internal/codec"
	"github.com/Faultbox/rigbridge/internal/config"
	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
	"github.com/Faultbox/rigbridge/internal/rig"
	"github.com/Faultbox/rigbridge/pkg/formats"
	"github.com/Faultbox/rigbridge/pkg/transport"
)

// Session errors.
var (
	ErrNoRig     = errors.New("no rig selected")
	ErrNoClient  = errors.New("no authoring tool client")
	ErrNotAModel = errors.New("selection is not a model")
)

// Session holds the rig built from the current selection. The tree is
// replaced wholesale on every selection and never shared between sessions.
type Session struct {
	ID    uuid.UUID
	World *host.World
	Tree  *rig.RigTree

	cfg       *config.Config
	codec     *codec.Codec
	transport transport.Codec
	client    *bridge.Client
	log       *zap.Logger

	mu     sync.Mutex
	hashes map[string]string // last payload hash seen per animation name
}

// New creates a session over w. client may be nil for offline use.
func New(w *host.World, cfg *config.Config, client *bridge.Client) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	w.Scheduler.Every = cfg.Rig.YieldEvery

	id := uuid.New()
	return &Session{
		ID:        id,
		World:     w,
		cfg:       cfg,
		codec:     codec.New(&w.Scheduler),
		transport: transport.Codec{Level: cfg.Transport.CompressionLevel},
		client:    client,
		log:       logger.Named("session").With(zap.String("session", id.String())),
		hashes:    make(map[string]string),
	}
}

// SelectRig builds a new tree for the model ref. root names the root part;
// when empty it is found with rig.FindRootPart. On failure the previous tree
// is dropped.
func (s *Session) SelectRig(ref host.Ref, root string) error {
	s.Tree = nil

	model, ok := s.World.Get(ref)
	if !ok || model.Class != host.ClassModel {
		return ErrNotAModel
	}

	var rootPart *host.Instance
	if root != "" {
		rootPart = s.World.FindFirst(model, root)
		if rootPart == nil {
			return fmt.Errorf("%w: no part %q in %s", rig.ErrNoRoot, root, model.Name)
		}
	} else {
		var err error
		if rootPart, err = rig.FindRootPart(s.World, model); err != nil {
			return err
		}
	}

	tree, err := rig.Build(s.World, rootPart, rig.Options{
		Deform:   s.cfg.Rig.DeformBones,
		MaxDepth: s.cfg.Rig.MaxDepth,
	})
	if err != nil {
		s.log.Error("rig build failed", zap.String("model", model.Name), zap.Error(err))
		return err
	}
	s.Tree = tree
	s.log.Info("rig selected",
		zap.String("rig", tree.Name),
		zap.String("root", rootPart.Name),
		zap.Int("nodes", tree.Len()))
	return nil
}

func (s *Session) tree() (*rig.RigTree, error) {
	if s.Tree == nil {
		return nil, ErrNoRig
	}
	return s.Tree, nil
}

// LoadAnimation replaces the rig's timelines with p.
func (s *Session) LoadAnimation(p *formats.AnimationPayload) (codec.LoadReport, error) {
	tree, err := s.tree()
	if err != nil {
		return codec.LoadReport{}, err
	}
	return s.codec.LoadAnimation(tree, p)
}

// ToNativeTree materializes the rig's timelines as a keyframe sequence.
func (s *Session) ToNativeTree() (*host.KeyframeSequence, error) {
	tree, err := s.tree()
	if err != nil {
		return nil, err
	}
	return s.codec.ToNativeTree(tree)
}

// Encode builds the rig export envelope.
func (s *Session) Encode() (*formats.Envelope, error) {
	tree, err := s.tree()
	if err != nil {
		return nil, err
	}
	env, err := s.codec.Encode(s.World, tree)
	if err != nil {
		return nil, err
	}
	if s.cfg.Export.Version > 0 {
		env.Version = s.cfg.Export.Version
	}
	return env, nil
}

// EncodeBytes builds the export envelope and encodes it for transport,
// as base64 text when the transport is in text mode.
func (s *Session) EncodeBytes() ([]byte, error) {
	env, err := s.Encode()
	if err != nil {
		return nil, err
	}
	return s.pack(env)
}

// Serialize flattens seq against the current rig and encodes it for transport.
func (s *Session) Serialize(seq *host.KeyframeSequence) ([]byte, error) {
	return s.pack(s.codec.Serialize(seq, s.Tree))
}

// Deserialize decodes transported bytes into an animation payload.
func (s *Session) Deserialize(data []byte, isText bool) (*formats.AnimationPayload, error) {
	p, issues, err := s.codec.Deserialize(data, isText, s.transport)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		s.log.Warn("payload partially applied", zap.Int("issues", len(issues)))
	}
	return p, nil
}

func (s *Session) pack(v any) ([]byte, error) {
	if s.cfg.Transport.TextMode {
		text, ok := s.transport.EncodeText(v)
		if !ok {
			return nil, codec.ErrUnencodable
		}
		return []byte(text), nil
	}
	data, ok := s.transport.Encode(v)
	if !ok {
		return nil, codec.ErrUnencodable
	}
	return data, nil
}

// Import fetches the named animation from the tool and loads it into the rig.
func (s *Session) Import(ctx context.Context, port int, name string) (codec.LoadReport, error) {
	if s.client == nil {
		return codec.LoadReport{}, ErrNoClient
	}
	if _, err := s.tree(); err != nil {
		return codec.LoadReport{}, err
	}
	data, err := s.client.ImportAnimation(ctx, port, name)
	if err != nil {
		return codec.LoadReport{}, fmt.Errorf("importing %s: %w", name, err)
	}
	s.remember(name, bridge.Hash(data))

	p, err := s.Deserialize(data, s.cfg.Transport.TextMode)
	if err != nil {
		return codec.LoadReport{}, fmt.Errorf("importing %s: %w", name, err)
	}
	return s.LoadAnimation(p)
}

// Export sends the rig's current animation to the tool and returns the name
// it was stored under.
func (s *Session) Export(ctx context.Context, port int, name string) (string, error) {
	if s.client == nil {
		return "", ErrNoClient
	}
	seq, err := s.ToNativeTree()
	if err != nil {
		return "", err
	}
	data, err := s.Serialize(seq)
	if err != nil {
		return "", err
	}
	stored, err := s.client.ExportAnimation(ctx, port, data, name)
	if err != nil {
		return "", fmt.Errorf("exporting %s: %w", name, err)
	}
	s.remember(stored, bridge.Hash(data))
	return stored, nil
}

// Status reports whether the named animation changed in the tool since this
// session last imported or exported it.
func (s *Session) Status(ctx context.Context, port int, name string) (bridge.Status, error) {
	if s.client == nil {
		return bridge.Status{}, ErrNoClient
	}
	s.mu.Lock()
	last := s.hashes[name]
	s.mu.Unlock()
	return s.client.CheckAnimationStatus(ctx, port, name, last)
}

func (s *Session) remember(name, hash string) {
	s.mu.Lock()
	s.hashes[name] = hash
	s.mu.Unlock()
}
