package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/codewithayuu/kira-chan-sub000/internal/events"
)

// AllProvidersFailedError is returned when every registered backend
// failed for a single chat call. It carries the last underlying error.
type AllProvidersFailedError struct {
	Attempts int
	Last     error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all %d providers failed (last: %v)", e.Attempts, e.Last)
}

func (e *AllProvidersFailedError) Unwrap() error { return e.Last }

// provider is a registered backend plus its routing table and counters.
// Counters are atomics — they are the only cross-turn shared mutable
// state in the gateway and need no locking.
type provider struct {
	client   Client
	priority int
	models   map[ModelClass]string

	requests atomic.Int64
	errors   atomic.Int64
	lastUsed atomic.Int64 // unix nanos, 0 = never
}

func (p *provider) modelFor(class ModelClass) string {
	if class == "" {
		class = ClassBalanced
	}
	if m, ok := p.models[class]; ok {
		return m
	}
	// Fall back through adjacent tiers so a two-model backend still
	// serves every class.
	for _, c := range []ModelClass{ClassBalanced, ClassFast, ClassQuality} {
		if m, ok := p.models[c]; ok {
			return m
		}
	}
	return ""
}

// ProviderStats is a point-in-time snapshot of one backend's counters,
// used for health reporting.
type ProviderStats struct {
	Name     string    `json:"name"`
	Priority int       `json:"priority"`
	Requests int64     `json:"requests"`
	Errors   int64     `json:"errors"`
	LastUsed time.Time `json:"last_used,omitzero"`
}

// Gateway abstracts multiple LLM backends behind one chat call with
// priority-ordered failover. Higher priority is tried first; any
// backend failure (transport error, non-2xx, empty payload) records an
// error stat and falls through to the next.
type Gateway struct {
	logger    *slog.Logger
	bus       *events.Bus
	providers []*provider // sorted by descending priority
}

// NewGateway creates an empty gateway. Register backends with Register
// before calling Chat.
func NewGateway(logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{logger: logger.With("component", "gateway")}
}

// SetEventBus attaches the operational event bus. Call at startup,
// before Chat traffic; the bus is nil-safe so attaching none is fine.
func (g *Gateway) SetEventBus(b *events.Bus) { g.bus = b }

// Register adds a backend with its priority and class→model table.
// Not safe to call concurrently with Chat; register everything at
// startup.
func (g *Gateway) Register(client Client, priority int, models map[ModelClass]string) {
	g.providers = append(g.providers, &provider{
		client:   client,
		priority: priority,
		models:   models,
	})
	sort.SliceStable(g.providers, func(i, j int) bool {
		return g.providers[i].priority > g.providers[j].priority
	})
}

// Chat tries each backend in priority order until one returns a usable
// response. Returns *AllProvidersFailedError when every backend fails.
func (g *Gateway) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if len(g.providers) == 0 {
		return nil, &AllProvidersFailedError{Attempts: 0, Last: fmt.Errorf("no providers registered")}
	}

	var lastErr error
	attempts := 0
	for i, p := range g.providers {
		model := p.modelFor(opts.Class)
		if model == "" {
			continue
		}

		attempts++
		p.requests.Add(1)
		p.lastUsed.Store(time.Now().UnixNano())
		metricRequests.WithLabelValues(p.client.Name(), string(opts.Class)).Inc()
		if i > 0 {
			metricFailovers.Inc()
		}

		resp, err := p.client.Chat(ctx, model, messages, opts)
		if err == nil && strings.TrimSpace(resp.Text) == "" {
			err = fmt.Errorf("%s returned empty response", p.client.Name())
		}
		if err != nil {
			p.errors.Add(1)
			metricErrors.WithLabelValues(p.client.Name(), string(opts.Class)).Inc()
			lastErr = err

			// Cancellation is the caller's decision, not a backend
			// fault — don't burn through the rest of the list.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			g.logger.Warn("provider failed, falling over",
				"provider", p.client.Name(),
				"model", model,
				"error", err,
			)
			g.bus.Publish(events.Event{Source: events.SourceGateway, Kind: events.KindProviderFailover,
				Data: map[string]any{"provider": p.client.Name(), "error": err.Error()}})
			continue
		}

		metricLatency.WithLabelValues(p.client.Name()).Observe(resp.Elapsed.Seconds())
		resp.Provider = p.client.Name()
		return resp, nil
	}

	metricExhausted.Inc()
	g.logger.Error("all providers exhausted", "attempts", attempts, "error", lastErr)
	return nil, &AllProvidersFailedError{Attempts: attempts, Last: lastErr}
}

// Stats returns a snapshot of per-backend counters in priority order.
func (g *Gateway) Stats() []ProviderStats {
	out := make([]ProviderStats, 0, len(g.providers))
	for _, p := range g.providers {
		s := ProviderStats{
			Name:     p.client.Name(),
			Priority: p.priority,
			Requests: p.requests.Load(),
			Errors:   p.errors.Load(),
		}
		if ns := p.lastUsed.Load(); ns > 0 {
			s.LastUsed = time.Unix(0, ns)
		}
		out = append(out, s)
	}
	return out
}

// Ping checks the highest-priority backend.
func (g *Gateway) Ping(ctx context.Context) error {
	if len(g.providers) == 0 {
		return fmt.Errorf("no providers registered")
	}
	return g.providers[0].client.Ping(ctx)
}
