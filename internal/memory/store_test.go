package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/codewithayuu/kira-chan-sub000/internal/events"
)

// fakeEmbedder returns scripted vectors by exact text, falling back to
// a deterministic vector derived from the text so identical content
// always embeds identically.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	v := make([]float32, 8)
	for i, b := range []byte(text) {
		v[i%8] += float32(b) / 255
	}
	return v, nil
}

func newTestStore(t *testing.T, emb *fakeEmbedder) *Store {
	t.Helper()
	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "memory.json"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { backend.Close() })
	return NewStore(backend, emb, 30*24*time.Hour, nil)
}

func TestAddPromisePassesWriteGate(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})

	node, err := s.Add(context.Background(), "u1", TypePromise, "I promise I'll call you tomorrow", nil)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if node == nil {
		t.Fatal("promise rejected, want stored")
	}
	if node.Importance < 0.95 {
		t.Errorf("importance = %v, want ≥ 0.95", node.Importance)
	}
	if node.Repetitions != 1 {
		t.Errorf("repetitions = %d, want 1", node.Repetitions)
	}
}

func TestAddSentimentBoundaryInclusive(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})

	// Plain sentiment with no markers sits exactly at the 0.6 gate and
	// must be stored.
	node, err := s.Add(context.Background(), "u1", TypeSentiment, "today felt pretty okay overall", nil)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if node == nil {
		t.Fatal("boundary sentiment rejected, want stored")
	}
	if node.Importance != 0.6 {
		t.Errorf("importance = %v, want exactly 0.6", node.Importance)
	}
}

func TestAddHedgedSentimentRejected(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})

	node, err := s.Add(context.Background(), "u1", TypeSentiment, "maybe the movie was fine, not sure", nil)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if node != nil {
		t.Errorf("hedged sentiment stored with importance %v, want rejected", node.Importance)
	}
}

func TestAddRejectedPublishesEvent(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})
	bus := events.New()
	ch := bus.Subscribe(8)
	defer bus.Unsubscribe(ch)
	s.SetEventBus(bus)

	node, err := s.Add(context.Background(), "u1", TypeSentiment, "maybe the movie was fine, not sure", nil)
	if err != nil || node != nil {
		t.Fatalf("Add() = (%v, %v), want rejection", node, err)
	}

	select {
	case e := <-ch:
		if e.Kind != events.KindMemoryRejected || e.Source != events.SourceMemory {
			t.Errorf("event = %+v, want memory_rejected from memory", e)
		}
		if e.Data["user_id"] != "u1" {
			t.Errorf("user_id = %v, want u1", e.Data["user_id"])
		}
	default:
		t.Fatal("no rejection event published")
	}
}

func TestAddDedupIncrementsSameNode(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()

	first, err := s.Add(ctx, "u1", TypeFact, "my sister lives in Pune", nil)
	if err != nil || first == nil {
		t.Fatalf("first Add() = (%v, %v)", first, err)
	}
	firstImportance := first.Importance

	second, err := s.Add(ctx, "u1", TypeFact, "my sister lives in Pune", nil)
	if err != nil || second == nil {
		t.Fatalf("second Add() = (%v, %v)", second, err)
	}

	if second.ID != first.ID {
		t.Errorf("second write created node %s, want reinforcement of %s", second.ID, first.ID)
	}
	if second.Repetitions != 2 {
		t.Errorf("repetitions = %d, want 2", second.Repetitions)
	}
	if second.Importance < firstImportance {
		t.Errorf("importance decreased %v → %v", firstImportance, second.Importance)
	}

	nodes, _ := s.backend.Load("u1")
	if len(nodes) != 1 {
		t.Errorf("stored nodes = %d, want 1", len(nodes))
	}
}

func TestAddSemanticLinking(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"I love filter coffee":        {1, 0, 0, 0},
		"coffee is my morning ritual": {1, 0.5, 0, 0}, // cosine ≈ 0.894 vs above
	}}
	s := newTestStore(t, emb)
	ctx := context.Background()

	a, err := s.Add(ctx, "u1", TypePreference, "I love filter coffee", nil)
	if err != nil || a == nil {
		t.Fatalf("Add a: (%v, %v)", a, err)
	}
	b, err := s.Add(ctx, "u1", TypePreference, "coffee is my morning ritual", nil)
	if err != nil || b == nil {
		t.Fatalf("Add b: (%v, %v)", b, err)
	}

	if len(b.Edges) != 1 || b.Edges[0].TargetID != a.ID {
		t.Fatalf("b edges = %+v, want one edge to a", b.Edges)
	}

	// The edge must be symmetric on the stored copy of a.
	nodes, _ := s.backend.Load("u1")
	for _, n := range nodes {
		if n.ID == a.ID {
			if len(n.Edges) != 1 || n.Edges[0].TargetID != b.ID {
				t.Errorf("a edges = %+v, want one edge back to b", n.Edges)
			}
		}
	}
}

func TestAddEmbeddingFailureAbortsWrite(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{err: fmt.Errorf("embed service down")})

	node, err := s.Add(context.Background(), "u1", TypePromise, "I promise to remember this", nil)
	if err == nil {
		t.Error("expected error from failed embedding")
	}
	if node != nil {
		t.Error("node stored despite embedding failure")
	}
}

func TestRetrieveRanking(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"query":  {1, 0, 0, 0},
		"close":  {1, 0.1, 0, 0},
		"medium": {1, 1, 0, 0},
		"far":    {0, 0, 1, 0},
	}}
	s := newTestStore(t, emb)
	ctx := context.Background()

	// All same type and freshly written: recency and importance are
	// equal, so similarity alone decides the order.
	for _, content := range []string{"far", "medium", "close"} {
		if _, err := s.Add(ctx, "u1", TypeFact, content, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Retrieve(ctx, "u1", "query", 2)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(got))
	}
	if got[0].Node.Content != "close" {
		t.Errorf("rank 1 = %q, want close", got[0].Node.Content)
	}
	if got[1].Node.Content != "medium" {
		t.Errorf("rank 2 = %q, want medium", got[1].Node.Content)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %v, %v", got[0].Score, got[1].Score)
	}
}

func TestRetrieveTouchesAllScannedNodes(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()

	node, err := s.Add(ctx, "u1", TypeFact, "my birthday is in March", nil)
	if err != nil || node == nil {
		t.Fatal(err)
	}

	// Backdate the node, then retrieve with an unrelated query.
	node.LastAccessedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := s.backend.Put(node); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Retrieve(ctx, "u1", "something completely different", 1); err != nil {
		t.Fatal(err)
	}

	nodes, _ := s.backend.Load("u1")
	if age := time.Since(nodes[0].LastAccessedAt); age > time.Minute {
		t.Errorf("scanned node not touched, last access %v ago", age)
	}
}

func TestRetrieveEmbedFailureReturnsEmpty(t *testing.T) {
	emb := &fakeEmbedder{}
	s := newTestStore(t, emb)
	ctx := context.Background()

	if _, err := s.Add(ctx, "u1", TypeFact, "something memorable happened", nil); err != nil {
		t.Fatal(err)
	}

	emb.err = fmt.Errorf("embed service down")
	got, err := s.Retrieve(ctx, "u1", "anything", 3)
	if err != nil {
		t.Errorf("Retrieve() error = %v, want silent empty result", err)
	}
	if len(got) != 0 {
		t.Errorf("results = %d, want 0", len(got))
	}
}

func TestDecayRemovesStaleUnimportant(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()
	now := time.Now().UTC()

	stale, err := s.Add(ctx, "u1", TypeSentiment, "the weather was nice that day", nil)
	if err != nil || stale == nil {
		t.Fatal(err)
	}
	keep, err := s.Add(ctx, "u1", TypePromise, "I promise to visit in December", nil)
	if err != nil || keep == nil {
		t.Fatal(err)
	}

	// Both idle past 2·tau; only the low-importance one should go.
	for _, n := range []*Node{stale, keep} {
		n.LastAccessedAt = now.Add(-61 * 24 * time.Hour)
		if err := s.backend.Put(n); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Decay("u1", now)
	if err != nil {
		t.Fatalf("Decay() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	nodes, _ := s.backend.Load("u1")
	if len(nodes) != 1 || nodes[0].ID != keep.ID {
		t.Errorf("surviving nodes = %+v, want only the promise", nodes)
	}
}

func TestRehearseSurfacesIdleImportant(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()
	now := time.Now().UTC()

	old, err := s.Add(ctx, "u1", TypePromise, "I promise to learn guitar with you", nil)
	if err != nil || old == nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, "u1", TypeFact, "I work at a startup in Delhi", nil); err != nil {
		t.Fatal(err)
	}

	old.LastAccessedAt = now.Add(-10 * 24 * time.Hour)
	if err := s.backend.Put(old); err != nil {
		t.Fatal(err)
	}

	got, err := s.Rehearse("u1", 3, now)
	if err != nil {
		t.Fatalf("Rehearse() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != old.ID {
		t.Fatalf("rehearsed = %+v, want only the idle promise", got)
	}

	// Rehearsal refreshes access time so the node isn't re-surfaced.
	nodes, _ := s.backend.Load("u1")
	for _, n := range nodes {
		if n.ID == old.ID && now.Sub(n.LastAccessedAt) > time.Minute {
			t.Error("rehearsed node not touched")
		}
	}
}

func TestRunMaintenanceAllUsers(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()
	now := time.Now().UTC()

	for _, user := range []string{"u1", "u2"} {
		n, err := s.Add(ctx, user, TypeSentiment, "it was an ordinary afternoon", nil)
		if err != nil || n == nil {
			t.Fatal(err)
		}
		n.LastAccessedAt = now.Add(-100 * 24 * time.Hour)
		if err := s.backend.Put(n); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.RunMaintenance(ctx, now); err != nil {
		t.Fatalf("RunMaintenance() error: %v", err)
	}

	for _, user := range []string{"u1", "u2"} {
		if nodes, _ := s.backend.Load(user); len(nodes) != 0 {
			t.Errorf("user %s still has %d nodes after maintenance", user, len(nodes))
		}
	}
}

func TestCommitments(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()

	if _, err := s.Add(ctx, "u1", TypePromise, "I promise we'll watch that movie", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, "u1", TypeFact, "my office shifted to Gurgaon", nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.Commitments("u1", 5)
	if err != nil {
		t.Fatalf("Commitments() error: %v", err)
	}
	if len(got) != 1 || got[0].Type != TypePromise {
		t.Errorf("commitments = %+v, want only the promise", got)
	}
}

func TestImportanceComputation(t *testing.T) {
	tests := []struct {
		name     string
		nodeType NodeType
		content  string
		reps     int
		want     float64
	}{
		{"promise with commitment capped", TypePromise, "I promise I'll call", 1, 1.0},
		{"plain fact", TypeFact, "my cat is named Mochi", 1, 0.8},
		{"emphasized preference", TypePreference, "chai is my favorite thing", 1, 0.95},
		{"plain sentiment at gate", TypeSentiment, "felt a bit tired today", 1, 0.6},
		{"hedged sentiment below gate", TypeSentiment, "maybe it was fine", 1, 0.5},
		{"repetition bonus", TypeFact, "my cat is named Mochi", 3, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeImportance(tt.nodeType, tt.content, tt.reps)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("computeImportance = %v, want %v", got, tt.want)
			}
		})
	}
}
