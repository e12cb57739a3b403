package bridge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/logger"
)

// Store is an in-memory stand-in for the authoring tool's side: a list of
// armatures and the animation payloads exchanged with them.
type Store struct {
	mu         sync.Mutex
	armatures  []string
	animations map[string][]byte
	next       int
}

// NewStore returns a store exposing the given armatures.
func NewStore(armatures ...string) *Store {
	return &Store{
		armatures:  armatures,
		animations: make(map[string][]byte),
	}
}

// Hash identifies a payload revision.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Put stores data under name and returns its hash. An empty name is replaced
// by a generated one.
func (s *Store) Put(name string, data []byte) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		s.next++
		name = fmt.Sprintf("Animation%d", s.next)
	}
	s.animations[name] = append([]byte(nil), data...)
	return name, Hash(data)
}

// Get returns the payload stored under name.
func (s *Store) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.animations[name]
	return data, ok
}

// Armatures returns the armature names, sorted.
func (s *Store) Armatures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.armatures...)
	sort.Strings(out)
	return out
}

// NewHandler serves the tool endpoint the Client talks to.
func NewHandler(s *Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/armatures", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"armatures": s.Armatures()})
	})
	r.Route("/animations", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			put(s, "", w, r)
		})
		r.Put("/{name}", func(w http.ResponseWriter, r *http.Request) {
			name, ok := nameParam(w, r)
			if !ok {
				return
			}
			put(s, name, w, r)
		})
		r.Get("/{name}", func(w http.ResponseWriter, r *http.Request) {
			name, ok := nameParam(w, r)
			if !ok {
				return
			}
			data, ok := s.Get(name)
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(data)
		})
		r.Get("/{name}/status", func(w http.ResponseWriter, r *http.Request) {
			name, ok := nameParam(w, r)
			if !ok {
				return
			}
			data, ok := s.Get(name)
			if !ok {
				http.NotFound(w, r)
				return
			}
			hash := Hash(data)
			writeJSON(w, http.StatusOK, Status{
				Name:    name,
				Hash:    hash,
				Changed: hash != r.URL.Query().Get("hash"),
			})
		})
	})
	return r
}

// nameParam returns the unescaped {name} segment. chi matches on the raw
// path when the request carried escapes such as %2F.
func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, true
	}
	name, err := url.PathUnescape(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return name, true
}

func put(s *Store, name string, w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name, hash := s.Put(name, data)
	logger.Debug("animation stored", zap.String("name", name), zap.String("hash", hash))
	writeJSON(w, http.StatusOK, Status{Name: name, Hash: hash, Changed: true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing response", zap.Error(err))
	}
}
