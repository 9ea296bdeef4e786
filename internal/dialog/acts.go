// Package dialog classifies the communicative function of each user
// turn (dialog acts) and maps acts to turn-taking rules that shape the
// response plan. Classification is deterministic pattern matching with
// an optional LLM fallback for turns nothing matches.
package dialog

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Act labels the communicative function of a turn.
type Act string

const (
	ActGreeting Act = "greeting"
	ActRepair   Act = "repair"
	ActAck      Act = "ack"
	ActQuestion Act = "question"
	ActPlan     Act = "plan"
	ActFeedback Act = "feedback"
	ActShare    Act = "share"
	ActAnswer   Act = "answer"
	ActUnknown  Act = "unknown"
)

// Result is a classification with provenance. Pattern matches are
// trusted more than the LLM fallback.
type Result struct {
	Act        Act
	Confidence float64
	Source     string // "pattern" or "llm"
}

// FallbackFunc asks an LLM to label a turn when no pattern matches.
type FallbackFunc func(ctx context.Context, text string) (Act, error)

// pattern table in precedence order. First match wins; order is part
// of the contract (a short "ok, got it" is an ack even when a question
// is pending).
var actPatterns = []struct {
	act Act
	re  *regexp.Regexp
}{
	{ActGreeting, regexp.MustCompile(`(?i)^(hi+|hey+|hello+|yo|heya|namaste|good (morning|afternoon|evening)|wassup|sup)\b`)},
	{ActRepair, regexp.MustCompile(`(?i)\b(no,? (i|that'?s)|i meant|i didn'?t mean|that'?s not what|you (misunderstood|got it wrong)|wrong,|actually i said)\b`)},
	{ActAck, regexp.MustCompile(`(?i)^(ok(ay)?|k+|got it|cool|nice|sure|fine|right|yeah|yep|yup|hmm+|achha|theek hai|thanks|thank you|thx)\b[\s\p{P}]*(\b(got it|cool|thanks|sure|fine)\b)?[\s\p{P}]*$`)},
	{ActQuestion, regexp.MustCompile(`(?i)(\?|^(what|why|how|when|where|who|which|can you|could you|do you|did you|will you|are you|is it|kya)\b)`)},
	{ActPlan, regexp.MustCompile(`(?i)\b(let'?s|we should|how about|shall we|wanna (go|do|watch|try)|want to (go|do|watch|try)|chalo|plan (for|to))\b`)},
	{ActFeedback, regexp.MustCompile(`(?i)\b(i (really )?(liked|loved|hated|didn'?t like)|that was (really |so )?(great|sweet|helpful|bad|annoying)|you'?re (so|really|such)|good (bot|answer)|well said)\b`)},
	{ActShare, regexp.MustCompile(`(?i)\b(i'?m (so |really |kinda )?(stressed|sad|happy|excited|tired|angry|anxious|nervous|scared|lonely|upset|down|overwhelmed)|i feel|feeling (so |really )?\w+|i miss|can'?t stop (thinking|crying)|guess what|you won'?t believe)\b`)},
}

// Classifier labels user turns.
type Classifier struct {
	fallback FallbackFunc
	logger   *slog.Logger
}

// NewClassifier creates a classifier. fallback may be nil, in which
// case unmatched turns stay unknown.
func NewClassifier(fallback FallbackFunc, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{fallback: fallback, logger: logger.With("component", "dialog")}
}

// Classify labels a turn. lastAssistant is the assistant's previous
// message; a turn is only an answer when that message ended with a
// question mark. The LLM fallback runs only when every pattern misses,
// and its verdict carries lower confidence than a pattern match.
func (c *Classifier) Classify(ctx context.Context, text, lastAssistant string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Act: ActUnknown, Confidence: 0, Source: "pattern"}
	}

	for _, p := range actPatterns {
		if p.re.MatchString(trimmed) {
			return Result{Act: p.act, Confidence: 0.9, Source: "pattern"}
		}
	}

	if strings.HasSuffix(strings.TrimSpace(lastAssistant), "?") {
		return Result{Act: ActAnswer, Confidence: 0.8, Source: "pattern"}
	}

	if c.fallback != nil {
		act, err := c.fallback(ctx, trimmed)
		if err != nil {
			c.logger.Debug("act fallback failed", "error", err)
			return Result{Act: ActUnknown, Confidence: 0.3, Source: "pattern"}
		}
		return Result{Act: act, Confidence: 0.6, Source: "llm"}
	}

	return Result{Act: ActUnknown, Confidence: 0.3, Source: "pattern"}
}
