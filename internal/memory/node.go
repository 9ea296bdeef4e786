// Package memory provides the per-user long-term memory graph:
// importance-gated writes, semantic retrieval, decay, and rehearsal.
package memory

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// NodeType classifies what kind of information a node holds.
type NodeType string

const (
	TypeFact       NodeType = "fact"
	TypePreference NodeType = "preference"
	TypePlan       NodeType = "plan"
	TypePromise    NodeType = "promise"
	TypeInsideJoke NodeType = "inside_joke"
	TypeSentiment  NodeType = "sentiment"
)

// Base importance weight by type. Promises are near-certain keeps;
// passing sentiment sits exactly at the write gate.
var typeWeights = map[NodeType]float64{
	TypePromise:    0.95,
	TypePlan:       0.90,
	TypePreference: 0.85,
	TypeFact:       0.80,
	TypeInsideJoke: 0.75,
	TypeSentiment:  0.60,
}

// writeGate is the minimum importance for a first-occurrence write.
const writeGate = 0.6

// Edge is a directed link to another node of the same user. Semantic
// edges are always added in both directions.
type Edge struct {
	TargetID string  `json:"target_id"`
	Type     string  `json:"type"`
	Weight   float64 `json:"weight"`
}

// Node is one memory. The store is its sole mutator.
type Node struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Type           NodeType          `json:"type"`
	Content        string            `json:"content"`
	Embedding      []float32         `json:"embedding,omitempty"`
	Importance     float64           `json:"importance"`
	Repetitions    int               `json:"repetitions"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Edges          []Edge            `json:"edges,omitempty"`
}

var (
	commitmentRe  = regexp.MustCompile(`(?i)\b(promise|i will|i'll|always|never|every (day|week|time)|pakka)\b`)
	emphasisRe    = regexp.MustCompile(`(?i)\b(love|hate|favorite|favourite|best|worst|really|so much|important)\b`)
	uncertaintyRe = regexp.MustCompile(`(?i)\b(maybe|i guess|not sure|probably|might|shayad)\b`)
)

// computeImportance scores a node from its type base weight, content
// markers, and repetition count. Commitment language adds 0.2 and
// emphasis language 0.1; hedged content loses 0.1, which is what lets
// a one-off hedged sentiment fall below the write gate. Each
// repetition beyond the first adds 0.05. Capped at 1.0. Recomputed on
// creation and whenever repetitions increments, so importance never
// decreases for a given node.
func computeImportance(nodeType NodeType, content string, repetitions int) float64 {
	base, ok := typeWeights[nodeType]
	if !ok {
		base = typeWeights[TypeSentiment]
	}

	if commitmentRe.MatchString(content) {
		base += 0.2
	}
	if emphasisRe.MatchString(content) {
		base += 0.1
	}
	if uncertaintyRe.MatchString(content) {
		base -= 0.1
	}
	if repetitions > 1 {
		base += 0.05 * float64(repetitions-1)
	}

	return math.Max(0, math.Min(1.0, base))
}

// passesWriteGate reports whether a node is persistable: importance at
// or above the gate, or seen at least twice. The boundary is inclusive.
func passesWriteGate(importance float64, repetitions int) bool {
	return importance >= writeGate || repetitions >= 2
}

// ValidType reports whether s names a known node type.
func ValidType(s string) bool {
	_, ok := typeWeights[NodeType(strings.ToLower(s))]
	return ok
}
