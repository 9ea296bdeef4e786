package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend stores all nodes in a single flat JSON file, keyed by
// user. Every mutation rewrites the file via temp-file rename, so a
// crash never leaves a half-written store. Fine for a single-process
// companion; use SQLiteBackend past a few thousand nodes.
type FileBackend struct {
	path string

	mu    sync.RWMutex
	nodes map[string]map[string]*Node // userID → nodeID → node
}

// NewFileBackend opens (or creates) a JSON file backend at path.
func NewFileBackend(path string) (*FileBackend, error) {
	b := &FileBackend{
		path:  path,
		nodes: make(map[string]map[string]*Node),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}

	var flat []*Node
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("parse memory file: %w", err)
	}
	for _, n := range flat {
		b.insert(n)
	}
	return b, nil
}

func (b *FileBackend) insert(n *Node) {
	byID, ok := b.nodes[n.UserID]
	if !ok {
		byID = make(map[string]*Node)
		b.nodes[n.UserID] = byID
	}
	byID[n.ID] = n
}

// Load returns all nodes for a user.
func (b *FileBackend) Load(userID string) ([]*Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	byID := b.nodes[userID]
	out := make([]*Node, 0, len(byID))
	for _, n := range byID {
		out = append(out, n)
	}
	return out, nil
}

// Put inserts or replaces a node and persists the file.
func (b *FileBackend) Put(node *Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.insert(node)
	return b.save()
}

// Delete removes a node by ID and persists the file.
func (b *FileBackend) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for userID, byID := range b.nodes {
		if _, ok := byID[id]; ok {
			delete(byID, id)
			if len(byID) == 0 {
				delete(b.nodes, userID)
			}
			return b.save()
		}
	}
	return nil
}

// UserIDs lists every user with at least one node.
func (b *FileBackend) UserIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.nodes))
	for userID := range b.nodes {
		out = append(out, userID)
	}
	return out, nil
}

// Close flushes the file one last time.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.save()
}

// save writes the store atomically. Caller must hold the write lock.
func (b *FileBackend) save() error {
	var flat []*Node
	for _, byID := range b.nodes {
		for _, n := range byID {
			flat = append(flat, n)
		}
	}

	data, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory file: %w", err)
	}

	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create memory dir: %w", err)
		}
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}
