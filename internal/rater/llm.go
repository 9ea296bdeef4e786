package rater

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/codewithayuu/kira-chan-sub000/internal/llm"
)

var (
	sampledRatings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kira_rater_sampled_total",
		Help: "Turns sent to the LLM rater for offline analytics.",
	})
	sampledOverall = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kira_rater_sampled_overall",
		Help:    "Overall scores from sampled LLM ratings.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
)

// LLMScores is the typed verdict of the LLM rater.
type LLMScores struct {
	Empathy    float64 `json:"empathy"`
	Directness float64 `json:"directness"`
	Brevity    float64 `json:"brevity"`
	Humanness  float64 `json:"humanness"`
	Overall    float64 `json:"overall"`
	Grade      string  `json:"grade"`
}

// Chatter is the one gateway method the rater needs.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error)
}

const ratePrompt = `You grade one assistant reply in a casual companion chat.
Score each dimension 0.0-1.0 and give a letter grade A-F.
Respond with a single JSON object:
{"empathy":0.0,"directness":0.0,"brevity":0.0,"humanness":0.0,"overall":0.0,"grade":"B"}`

// LLMRater asks a fast model to grade a response. Used only for
// analytics sampling, never for gating.
type LLMRater struct {
	chatter Chatter
	sample  float64
	logger  *slog.Logger

	// mu guards rand; MaybeSample is called from concurrently
	// running turns.
	mu   sync.Mutex
	rand *rand.Rand
}

// NewLLMRater creates a rater sampling the given fraction of turns.
func NewLLMRater(chatter Chatter, sample float64, logger *slog.Logger) *LLMRater {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMRater{
		chatter: chatter,
		sample:  sample,
		logger:  logger.With("component", "rater"),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Rate grades a user turn / response pair synchronously.
func (r *LLMRater) Rate(ctx context.Context, userTurn, response string) (*LLMScores, error) {
	resp, err := r.chatter.Chat(ctx, []llm.Message{
		{Role: "system", Content: ratePrompt},
		{Role: "user", Content: fmt.Sprintf("User said:\n%s\n\nAssistant replied:\n%s", userTurn, response)},
	}, llm.Options{Class: llm.ClassFast, JSONOnly: true, MaxTokens: 200})
	if err != nil {
		return nil, fmt.Errorf("rate call: %w", err)
	}

	scores, err := parseScores(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("parse rating: %w", err)
	}
	return scores, nil
}

// parseScores tolerates models that wrap the JSON in prose or fences.
func parseScores(text string) (*LLMScores, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in %q", text)
	}
	var s LLMScores
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MaybeSample fires an async rating for roughly the configured
// fraction of turns. The result is logged and counted, never used to
// gate the turn that triggered it.
func (r *LLMRater) MaybeSample(userTurn, response string) {
	if r.chatter == nil {
		return
	}
	r.mu.Lock()
	roll := r.rand.Float64()
	r.mu.Unlock()
	if roll >= r.sample {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		scores, err := r.Rate(ctx, userTurn, response)
		if err != nil {
			r.logger.Debug("sampled rating failed", "error", err)
			return
		}
		sampledRatings.Inc()
		sampledOverall.Observe(scores.Overall)
		r.logger.Info("sampled rating",
			"overall", scores.Overall,
			"grade", scores.Grade,
			"empathy", scores.Empathy,
			"directness", scores.Directness)
	}()
}
