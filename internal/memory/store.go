package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codewithayuu/kira-chan-sub000/internal/embeddings"
	"github.com/codewithayuu/kira-chan-sub000/internal/events"
)

const (
	// dedupThreshold: a write whose embedding matches an existing node
	// this closely increments that node instead of creating a new one.
	dedupThreshold = 0.9

	// linkThreshold: nodes of the same user above this similarity get
	// symmetric semantic edges.
	linkThreshold = 0.7

	// Retrieval score weights and the recency time constant in days.
	weightSimilarity = 0.6
	weightRecency    = 0.25
	weightImportance = 0.15
	recencyTauDays   = 14

	// Rehearsal surfaces important nodes idle at least this long.
	rehearseIdle          = 7 * 24 * time.Hour
	rehearseMinImportance = 0.75

	// Decay removes low-importance nodes idle longer than 2·tau.
	decayMaxImportance = 0.7
)

// Scored pairs a node with its retrieval score.
type Scored struct {
	Node  *Node
	Score float64
}

// Store is the memory graph. It is the sole mutator of nodes. Per-user
// mutexes guard the dedup/repetition-increment path against lost
// updates when turns from the same user interleave.
type Store struct {
	backend  Backend
	embedder embeddings.Embedder
	logger   *slog.Logger
	bus      *events.Bus
	tau      time.Duration

	mu     sync.Mutex
	userMu map[string]*sync.Mutex
}

// NewStore creates a memory store over a backend and embedder.
// tau is the decay time constant; zero means 30 days.
func NewStore(backend Backend, embedder embeddings.Embedder, tau time.Duration, logger *slog.Logger) *Store {
	if tau <= 0 {
		tau = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:  backend,
		embedder: embedder,
		logger:   logger.With("component", "memory"),
		tau:      tau,
		userMu:   make(map[string]*sync.Mutex),
	}
}

// SetEventBus attaches the operational event bus. Call at startup;
// the bus is nil-safe so attaching none is fine.
func (s *Store) SetEventBus(b *events.Bus) { s.bus = b }

func (s *Store) lockUser(userID string) func() {
	s.mu.Lock()
	m, ok := s.userMu[userID]
	if !ok {
		m = &sync.Mutex{}
		s.userMu[userID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Add writes a memory for a user. Returns (nil, nil) when the write
// gate rejects it: first occurrences must reach importance 0.6. A
// near-duplicate (cosine ≥ 0.9 against an existing node) increments
// that node's repetitions instead of creating a second one; importance
// is recomputed and never decreases. Embedding failure aborts this one
// write with an error the caller is expected to absorb.
func (s *Store) Add(ctx context.Context, userID string, nodeType NodeType, content string, metadata map[string]string) (*Node, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.logger.Warn("embedding failed, dropping memory write", "user", userID, "error", err)
		return nil, fmt.Errorf("embed content: %w", err)
	}

	unlock := s.lockUser(userID)
	defer unlock()

	existing, err := s.backend.Load(userID)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	now := time.Now().UTC()

	// Dedup path: reinforce the closest near-duplicate.
	var best *Node
	var bestSim float32
	for _, n := range existing {
		if sim := embeddings.CosineSimilarity(vec, n.Embedding); sim >= dedupThreshold && sim > bestSim {
			best, bestSim = n, sim
		}
	}
	if best != nil {
		best.Repetitions++
		best.Importance = math.Max(best.Importance, computeImportance(best.Type, best.Content, best.Repetitions))
		best.LastAccessedAt = now
		if err := s.backend.Put(best); err != nil {
			return nil, fmt.Errorf("update node: %w", err)
		}
		s.logger.Debug("reinforced memory",
			"user", userID, "node", best.ID,
			"repetitions", best.Repetitions, "importance", best.Importance,
		)
		return best, nil
	}

	importance := computeImportance(nodeType, content, 1)
	if !passesWriteGate(importance, 1) {
		s.logger.Debug("memory below write gate, dropped",
			"user", userID, "type", nodeType, "importance", importance,
		)
		s.bus.Publish(events.Event{Source: events.SourceMemory, Kind: events.KindMemoryRejected,
			Data: map[string]any{"user_id": userID, "type": string(nodeType), "importance": importance}})
		return nil, nil
	}

	node := &Node{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           nodeType,
		Content:        content,
		Embedding:      vec,
		Importance:     importance,
		Repetitions:    1,
		CreatedAt:      now,
		LastAccessedAt: now,
		Metadata:       metadata,
	}

	// Link path: symmetric semantic edges to sufficiently similar nodes.
	for _, other := range existing {
		sim := embeddings.CosineSimilarity(vec, other.Embedding)
		if sim <= linkThreshold {
			continue
		}
		w := float64(sim)
		node.Edges = append(node.Edges, Edge{TargetID: other.ID, Type: "semantic", Weight: w})
		other.Edges = append(other.Edges, Edge{TargetID: node.ID, Type: "semantic", Weight: w})
		if err := s.backend.Put(other); err != nil {
			return nil, fmt.Errorf("link node: %w", err)
		}
	}

	if err := s.backend.Put(node); err != nil {
		return nil, fmt.Errorf("store node: %w", err)
	}

	s.logger.Debug("stored memory",
		"user", userID, "node", node.ID, "type", nodeType,
		"importance", importance, "edges", len(node.Edges),
	)
	return node, nil
}

// Retrieve returns the top-k nodes for a query, ranked by
// 0.6·similarity + 0.25·recency + 0.15·importance, where recency is
// exp(-days idle / 14). An embedding failure yields an empty result
// rather than an error. Every scanned node's LastAccessedAt is
// refreshed, not just the returned ones — this mirrors the original
// system's behavior and is kept intentionally (see DESIGN.md).
func (s *Store) Retrieve(ctx context.Context, userID, query string, k int) ([]Scored, error) {
	if k <= 0 {
		k = 5
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, returning no memories", "user", userID, "error", err)
		return nil, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	nodes, err := s.backend.Load(userID)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	now := time.Now().UTC()
	scored := make([]Scored, 0, len(nodes))
	for _, n := range nodes {
		sim := float64(embeddings.CosineSimilarity(qvec, n.Embedding))
		idleDays := now.Sub(n.LastAccessedAt).Hours() / 24
		recency := math.Exp(-idleDays / recencyTauDays)
		score := weightSimilarity*sim + weightRecency*recency + weightImportance*n.Importance
		scored = append(scored, Scored{Node: n, Score: score})

		n.LastAccessedAt = now
		if err := s.backend.Put(n); err != nil {
			return nil, fmt.Errorf("touch node: %w", err)
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Commitments returns the user's promise and plan nodes, most recent
// first, for surfacing pending commitments in context.
func (s *Store) Commitments(userID string, limit int) ([]*Node, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	nodes, err := s.backend.Load(userID)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	var out []*Node
	for _, n := range nodes {
		if n.Type == TypePromise || n.Type == TypePlan {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Decay permanently removes a user's nodes that have been idle longer
// than 2·tau and never rose to importance 0.7. Returns the number
// removed.
func (s *Store) Decay(userID string, now time.Time) (int, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	nodes, err := s.backend.Load(userID)
	if err != nil {
		return 0, fmt.Errorf("load nodes: %w", err)
	}

	removed := 0
	for _, n := range nodes {
		if now.Sub(n.LastAccessedAt) > 2*s.tau && n.Importance < decayMaxImportance {
			if err := s.backend.Delete(n.ID); err != nil {
				return removed, fmt.Errorf("delete node: %w", err)
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("decayed memories", "user", userID, "removed", removed)
	}
	return removed, nil
}

// Rehearse surfaces up to count high-importance nodes that have been
// idle more than a week, for proactive callbacks in conversation.
// Surfaced nodes are touched so they are not re-surfaced immediately.
func (s *Store) Rehearse(userID string, count int, now time.Time) ([]*Node, error) {
	if count <= 0 {
		count = 3
	}

	unlock := s.lockUser(userID)
	defer unlock()

	nodes, err := s.backend.Load(userID)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	var idle []*Node
	for _, n := range nodes {
		if now.Sub(n.LastAccessedAt) > rehearseIdle && n.Importance > rehearseMinImportance {
			idle = append(idle, n)
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].Importance > idle[j].Importance })
	if len(idle) > count {
		idle = idle[:count]
	}

	for _, n := range idle {
		n.LastAccessedAt = now
		if err := s.backend.Put(n); err != nil {
			return nil, fmt.Errorf("touch node: %w", err)
		}
	}
	return idle, nil
}

// RunMaintenance runs decay for every user. The host application owns
// the schedule (cron, systemd timer, manual) — the store never starts
// its own timers.
func (s *Store) RunMaintenance(ctx context.Context, now time.Time) error {
	users, err := s.backend.UserIDs()
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	total := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		removed, err := s.Decay(userID, now)
		if err != nil {
			s.logger.Warn("decay failed for user", "user", userID, "error", err)
			continue
		}
		total += removed
	}

	s.logger.Info("memory maintenance complete", "users", len(users), "removed", total)
	return nil
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
