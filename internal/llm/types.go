// Package llm provides LLM backend clients and the failover gateway.
package llm

import (
	"log/slog"
	"time"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// ModelClass selects a tier of model rather than a concrete model name.
// Each backend maps classes to its own model names at registration time.
type ModelClass string

const (
	// ClassFast is for cheap, low-latency calls (planning, editing,
	// classification fallback).
	ClassFast ModelClass = "fast"
	// ClassBalanced is a middle tier.
	ClassBalanced ModelClass = "balanced"
	// ClassQuality is for the main drafting call.
	ClassQuality ModelClass = "quality"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Options control a single chat call.
type Options struct {
	Class       ModelClass
	Temperature float64
	MaxTokens   int
	// JSONOnly requests strict JSON output from backends that support a
	// structured response mode. Callers must still validate the payload.
	JSONOnly bool
}

// Response is the unified response from any backend. Wire format
// conversion happens at provider boundaries (openai.go, anthropic.go);
// everything downstream sees one canonical shape.
type Response struct {
	Text     string
	Provider string
	Model    string

	InputTokens  int
	OutputTokens int

	Elapsed time.Duration
}
