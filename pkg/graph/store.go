package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kaptinlin/jsonrepair"
)

// Store persists whole graph snapshots. Load returns a fresh copy each
// call; Save replaces the snapshot atomically. Writers must be serialized
// by the implementation, since the graph is read-modify-written as a unit.
type Store interface {
	Load(ctx context.Context) (*Graph, error)
	Save(ctx context.Context, g *Graph) error
}

// Mutate loads the graph, applies fn, and saves the result under the
// store's writer discipline. Errors from fn abort the save.
func Mutate(ctx context.Context, store Store, fn func(*Graph) error) (*Graph, error) {
	g, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// JSONStore persists the graph as a single JSON file. A mutex enforces the
// single-writer discipline; Save writes to a temp file and renames so a
// crashed writer never leaves a torn snapshot.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore creates the parent directory and an empty snapshot if the
// file does not exist yet.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create graph dir: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.Save(context.Background(), New()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load reads and parses the snapshot. Hand-edited files with minor JSON
// damage are repaired before parsing rather than failing the request.
func (s *JSONStore) Load(ctx context.Context) (*Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read graph snapshot: %w", err)
	}
	g, err := Unmarshal(data)
	if err == nil {
		return g, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return nil, err
	}
	return Unmarshal([]byte(repaired))
}

// Save writes the snapshot atomically.
func (s *JSONStore) Save(ctx context.Context, g *Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := g.Marshal()
	if err != nil {
		return fmt.Errorf("encode graph snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write graph snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace graph snapshot: %w", err)
	}
	return nil
}
