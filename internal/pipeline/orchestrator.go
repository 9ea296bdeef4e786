package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codewithayuu/kira-chan-sub000/internal/continuity"
	"github.com/codewithayuu/kira-chan-sub000/internal/dialog"
	"github.com/codewithayuu/kira-chan-sub000/internal/events"
	"github.com/codewithayuu/kira-chan-sub000/internal/llm"
	"github.com/codewithayuu/kira-chan-sub000/internal/memory"
	"github.com/codewithayuu/kira-chan-sub000/internal/persona"
	"github.com/codewithayuu/kira-chan-sub000/internal/rater"
	"github.com/codewithayuu/kira-chan-sub000/internal/style"
)

// Input validation errors, the only failures surfaced as errors rather
// than degraded in-persona output.
var (
	ErrEmptyInput   = errors.New("empty input")
	ErrInputTooLong = errors.New("input too long")
)

// maxInputChars bounds a single turn's input.
const maxInputChars = 4000

// Chatter is the gateway surface the pipeline needs.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error)
}

// MemoryStore is the memory surface the pipeline needs.
type MemoryStore interface {
	Add(ctx context.Context, userID string, nodeType memory.NodeType, content string, metadata map[string]string) (*memory.Node, error)
	Retrieve(ctx context.Context, userID, query string, k int) ([]memory.Scored, error)
	Commitments(userID string, limit int) ([]*memory.Node, error)
}

// Orchestrator runs the full response pipeline for each turn.
type Orchestrator struct {
	chatter    Chatter
	mem        MemoryStore
	classifier *dialog.Classifier
	profiles   *style.ProfileStore
	sessions   *SessionStore
	persona    persona.Persona
	sampler    *rater.LLMRater
	bus        *events.Bus
	logger     *slog.Logger

	maxReEdits   int
	summaryEvery int
	streamDelay  time.Duration
	recallK      int

	now func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPersona sets the companion identity.
func WithPersona(p persona.Persona) Option {
	return func(o *Orchestrator) { o.persona = p }
}

// WithSampler enables async LLM rating of a sample of turns.
func WithSampler(s *rater.LLMRater) Option {
	return func(o *Orchestrator) { o.sampler = s }
}

// WithEventBus attaches an event bus for observability.
func WithEventBus(b *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithMaxReEdits caps the re-edit loop.
func WithMaxReEdits(n int) Option {
	return func(o *Orchestrator) { o.maxReEdits = n }
}

// WithSummaryEvery sets the rolling-summary refresh interval in turns.
func WithSummaryEvery(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.summaryEvery = n
		}
	}
}

// WithStreamDelay overrides the per-word delivery pacing. Zero
// disables pacing; tests use this.
func WithStreamDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.streamDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator. chatter and mem are required; the
// classifier uses a fast-model fallback through the same gateway.
func New(chatter Chatter, mem MemoryStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chatter:      chatter,
		mem:          mem,
		profiles:     style.NewProfileStore(),
		sessions:     NewSessionStore(),
		persona:      persona.Default(),
		logger:       slog.Default(),
		maxReEdits:   2,
		summaryEvery: 15,
		streamDelay:  wordDelay,
		recallK:      5,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "pipeline")
	o.classifier = dialog.NewClassifier(o.actFallback, o.logger)
	return o
}

// actFallback labels unclassifiable turns with one fast model call.
func (o *Orchestrator) actFallback(ctx context.Context, text string) (dialog.Act, error) {
	resp, err := o.chatter.Chat(ctx, []llm.Message{
		{Role: "user", Content: persona.ActFallbackPrompt(text)},
	}, llm.Options{Class: llm.ClassFast, MaxTokens: 10})
	if err != nil {
		return dialog.ActUnknown, err
	}
	label := dialog.Act(strings.ToLower(strings.TrimSpace(resp.Text)))
	switch label {
	case dialog.ActGreeting, dialog.ActRepair, dialog.ActAck, dialog.ActQuestion,
		dialog.ActPlan, dialog.ActFeedback, dialog.ActShare:
		return label, nil
	}
	return dialog.ActUnknown, nil
}

// Respond runs one turn and returns the delivery stream. The channel
// always yields a control frame first, then token frames, then done.
// Anything that goes wrong inside the pipeline degrades to an
// in-persona message on the same stream; only input validation fails
// with an error.
func (o *Orchestrator) Respond(ctx context.Context, userID, text string) (<-chan Frame, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}
	if len(trimmed) > maxInputChars {
		return nil, fmt.Errorf("%w: %d chars", ErrInputTooLong, len(trimmed))
	}

	out := make(chan Frame, 16)
	go o.runTurn(ctx, userID, trimmed, out)
	return out, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, userID, text string, out chan Frame) {
	turnID := uuid.NewString()
	turnStart := o.now()
	sess := o.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()

	o.bus.Publish(events.Event{Source: events.SourcePipeline, Kind: events.KindTurnStart,
		Data: map[string]any{"turn_id": turnID, "user_id": userID, "conversation_id": sess.ConversationID}})

	log := o.logger.With("turn_id", turnID, "user_id", userID)

	// Perceive: act, emotion, and style are independent reads.
	phaseStart := o.now()
	var (
		act      dialog.Result
		emotion  dialog.Emotion
		observed style.Vector
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		act = o.classifier.Classify(gctx, text, sess.LastAssistant())
		return nil
	})
	g.Go(func() error {
		emotion = dialog.DetectEmotion(text)
		return nil
	})
	g.Go(func() error {
		observed = style.Analyze(text)
		return nil
	})
	g.Wait()
	profile := o.profiles.Observe(userID, observed)
	o.observePhase(turnID, "perceive", phaseStart)

	rule := dialog.RuleFor(act.Act)
	log.Debug("perceived", "act", act.Act, "confidence", act.Confidence,
		"emotion", dialog.Summarize(emotion))

	// Recall: memories, commitments, topic callbacks.
	phaseStart = o.now()
	contextBlock, callback := o.recall(ctx, sess, userID, text)
	o.observePhase(turnID, "recall", phaseStart)

	// Plan.
	phaseStart = o.now()
	plan := o.plan(ctx, act.Act, emotion, contextBlock, text, rule)
	plan.MergeAvoid(sess.Phrases.AvoidList())
	if callback != "" {
		plan.Beats = append([]string{"callback to " + callback}, plan.Beats...)
	}
	o.observePhase(turnID, "plan", phaseStart)

	directives := style.Instructions(profile)
	system := persona.SystemPrompt(o.persona, directives, contextBlock)

	// Draft.
	phaseStart = o.now()
	draft, err := o.draft(ctx, system, plan, text)
	o.observePhase(turnID, "draft", phaseStart)
	if err != nil {
		o.deliverFallback(ctx, sess, turnID, emotion, err, out, log)
		return
	}

	// Edit.
	phaseStart = o.now()
	edited := o.edit(ctx, plan, directives, draft)
	o.observePhase(turnID, "edit", phaseStart)

	// Rate, then re-edit while failing.
	phaseStart = o.now()
	final, scores, reEdits := o.rateAndReEdit(ctx, sess, plan, emotion, act.Act, edited)
	o.observePhase(turnID, "rate", phaseStart)

	// Post-process guardrails.
	phaseStart = o.now()
	final = postProcess(final, plan, emotion, len(strings.Fields(text)), sess, o.now(), sess.rng)
	if final == "" {
		final = persona.ApologyFallback()
	}
	o.observePhase(turnID, "post_process", phaseStart)

	// Deliver.
	stream(ctx, out, sess.ConversationID, turnID, dialog.MoodHint(emotion), final, o.streamDelay)

	// Learn.
	o.learn(sess, userID, text, final)

	turnsTotal.Inc()
	ratingScore.Observe(scores.Overall)
	turnDuration.Observe(o.now().Sub(turnStart).Seconds())
	o.bus.Publish(events.Event{Source: events.SourcePipeline, Kind: events.KindTurnComplete,
		Data: map[string]any{"turn_id": turnID, "user_id": userID,
			"elapsed_ms": o.now().Sub(turnStart).Milliseconds(),
			"rating":     scores.Overall, "re_edits": reEdits, "fallback": false}})
	log.Info("turn complete", "rating", scores.Overall, "re_edits", reEdits,
		"elapsed", o.now().Sub(turnStart))

	if o.sampler != nil {
		o.sampler.MaybeSample(text, final)
	}
}

// recall builds the context block: rolling summary, relevant memories,
// and open commitments. Returns the resumed-topic label when the turn
// is a callback to a buried topic.
func (o *Orchestrator) recall(ctx context.Context, sess *Session, userID, text string) (string, string) {
	var b strings.Builder
	if s := sess.Summary(); s != "" {
		b.WriteString("Summary so far: " + s + "\n")
	}

	scored, err := o.mem.Retrieve(ctx, userID, text, o.recallK)
	if err != nil {
		o.logger.Warn("memory retrieval failed", "error", err)
	}
	if len(scored) > 0 {
		b.WriteString("You remember:\n")
		for _, s := range scored {
			fmt.Fprintf(&b, "- %s\n", s.Node.Content)
		}
	}

	if commitments, err := o.mem.Commitments(userID, 3); err == nil && len(commitments) > 0 {
		b.WriteString("Open promises and plans:\n")
		for _, c := range commitments {
			fmt.Fprintf(&b, "- %s\n", c.Content)
		}
	}

	var resumed string
	if cb, topic := sess.Topics.Observe(text); cb {
		resumed = topic.Label
		fmt.Fprintf(&b, "The user just circled back to an earlier topic: %s\n", topic.Label)
	}
	return b.String(), resumed
}

// plan runs the fast planning call; any failure yields the
// conservative default shaped by the turn-taking rule.
func (o *Orchestrator) plan(ctx context.Context, act dialog.Act, emotion dialog.Emotion, contextBlock, text string, rule dialog.Rule) Plan {
	p := DefaultPlan()
	planned := false
	resp, err := o.chatter.Chat(ctx, []llm.Message{
		{Role: "user", Content: persona.PlanPrompt(string(act), dialog.Summarize(emotion), contextBlock, text)},
	}, llm.Options{Class: llm.ClassFast, JSONOnly: true, MaxTokens: 300})
	if err != nil {
		o.logger.Warn("plan call failed, using default", "error", err)
	} else if parsed, ok := ParsePlan(resp.Text); ok {
		p, planned = parsed, true
	} else {
		o.logger.Warn("plan unparseable, using default", "raw_len", len(resp.Text))
	}

	if len(p.Beats) == 0 {
		p.Beats = rule.Beats
	}
	if !planned {
		// Without a real plan the turn-taking rule decides length.
		p.Brevity = string(rule.Brevity)
	}
	if emotion.Charged() {
		p.Empathy = true
	}
	if rule.ReflectEmotionFirst && (len(p.Beats) == 0 || p.Beats[0] != "reflect_emotion") {
		p.Beats = append([]string{"reflect_emotion"}, p.Beats...)
	}
	return p
}

// draft runs the quality-tier generation call. This is the only phase
// whose failure cannot be papered over locally.
func (o *Orchestrator) draft(ctx context.Context, system string, plan Plan, text string) (string, error) {
	resp, err := o.chatter.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: persona.DraftPrompt(plan.Tone, plan.Beats, plan.WordCap(), plan.Keywords, text)},
	}, llm.Options{
		Class:     llm.ClassQuality,
		MaxTokens: dialog.TokenBudget(dialog.Brevity(plan.Brevity)),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// edit rewrites the draft for spoken cadence; on failure the draft
// ships as-is.
func (o *Orchestrator) edit(ctx context.Context, plan Plan, directives, draft string) string {
	resp, err := o.chatter.Chat(ctx, []llm.Message{
		{Role: "user", Content: persona.EditPrompt(plan.Avoid, directives, draft)},
	}, llm.Options{Class: llm.ClassFast, MaxTokens: dialog.TokenBudget(dialog.Brevity(plan.Brevity))})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		o.logger.Debug("edit pass skipped", "error", err)
		return draft
	}
	return resp.Text
}

// rateAndReEdit scores the candidate and re-edits while it fails, up
// to the cap. The best-scoring candidate ships even when nothing
// passes.
func (o *Orchestrator) rateAndReEdit(ctx context.Context, sess *Session, plan Plan, emotion dialog.Emotion, act dialog.Act, candidate string) (string, rater.Scores, int) {
	score := func(text string) rater.Scores {
		violations := sess.Phrases.Violations(text)
		return rater.Score(rater.Input{
			Text:           text,
			Keywords:       plan.Keywords,
			NeedsAnswer:    act == dialog.ActQuestion,
			NeedsEmpathy:   plan.Empathy || emotion.Charged(),
			WordCap:        plan.WordCap(),
			DiversityScore: continuity.Score(len(violations)),
			AvoidPhrases:   plan.Avoid,
		})
	}

	best, bestScores := candidate, score(candidate)
	reEdits := 0
	for current, scores := best, bestScores; !scores.Pass() && reEdits < o.maxReEdits; {
		reEdits++
		reEditsTotal.Inc()
		resp, err := o.chatter.Chat(ctx, []llm.Message{
			{Role: "user", Content: persona.ReEditPrompt(scores.Failing(), current)},
		}, llm.Options{Class: llm.ClassFast, MaxTokens: dialog.TokenBudget(dialog.Brevity(plan.Brevity))})
		if err != nil || strings.TrimSpace(resp.Text) == "" {
			break
		}
		current = resp.Text
		scores = score(current)
		if scores.Overall > bestScores.Overall {
			best, bestScores = current, scores
		}
	}
	return best, bestScores, reEdits
}

// deliverFallback streams the in-persona apology when generation is
// impossible. The client sees a normal turn.
func (o *Orchestrator) deliverFallback(ctx context.Context, sess *Session, turnID string, emotion dialog.Emotion, cause error, out chan Frame, log *slog.Logger) {
	fallbackTotal.Inc()
	var exhausted *llm.AllProvidersFailedError
	if errors.As(cause, &exhausted) {
		o.bus.Publish(events.Event{Source: events.SourceGateway, Kind: events.KindProvidersExhausted,
			Data: map[string]any{"attempts": exhausted.Attempts}})
	}
	log.Error("turn degraded to fallback", "error", cause)

	apology := persona.ApologyFallback()
	stream(ctx, out, sess.ConversationID, turnID, dialog.MoodHint(emotion), apology, o.streamDelay)
	sess.SetLastAssistant(apology)
	o.bus.Publish(events.Event{Source: events.SourcePipeline, Kind: events.KindTurnComplete,
		Data: map[string]any{"turn_id": turnID, "fallback": true}})
}

// learn updates per-user state after delivery and fires the async
// memory extraction. Summary refresh happens every summaryEvery turns.
func (o *Orchestrator) learn(sess *Session, userID, userText, response string) {
	sess.Phrases.Record(response)
	sess.SetLastAssistant(response)
	sess.Remember(userText, response)

	if turns := sess.BumpTurns(); turns%o.summaryEvery == 0 {
		o.refreshSummary(sess)
	}

	go o.extractMemories(userID, userText, response)
}

func (o *Orchestrator) refreshSummary(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := o.chatter.Chat(ctx, []llm.Message{
		{Role: "user", Content: persona.SummaryPrompt(sess.Summary(), sess.Transcript())},
	}, llm.Options{Class: llm.ClassFast, MaxTokens: 250})
	if err != nil {
		o.logger.Warn("summary refresh failed", "error", err)
		return
	}
	sess.SetSummary(strings.TrimSpace(resp.Text))
}

// extractMemories mines the finished exchange for nodes worth keeping.
// Runs detached from the turn; failures are logged and dropped.
func (o *Orchestrator) extractMemories(userID, userText, response string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := o.chatter.Chat(ctx, []llm.Message{
		{Role: "user", Content: persona.ExtractionPrompt(userText, response)},
	}, llm.Options{Class: llm.ClassFast, JSONOnly: true, MaxTokens: 400})
	if err != nil {
		o.logger.Debug("memory extraction failed", "error", err)
		return
	}

	var parsed struct {
		Memories []struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		} `json:"memories"`
	}
	start := strings.Index(resp.Text, "{")
	end := strings.LastIndex(resp.Text, "}")
	if start < 0 || end <= start {
		return
	}
	if err := json.Unmarshal([]byte(resp.Text[start:end+1]), &parsed); err != nil {
		o.logger.Debug("memory extraction unparseable", "error", err)
		return
	}

	for _, m := range parsed.Memories {
		if !memory.ValidType(m.Type) || strings.TrimSpace(m.Content) == "" {
			continue
		}
		node, err := o.mem.Add(ctx, userID, memory.NodeType(m.Type), m.Content, map[string]string{"source": "extraction"})
		if err != nil {
			o.logger.Debug("memory write failed", "error", err)
			continue
		}
		if node != nil {
			o.bus.Publish(events.Event{Source: events.SourceMemory, Kind: events.KindMemoryWrite,
				Data: map[string]any{"user_id": userID, "node_id": node.ID, "type": string(node.Type),
					"importance": node.Importance, "repetitions": node.Repetitions}})
		}
	}
}

func (o *Orchestrator) observePhase(turnID, phase string, start time.Time) {
	elapsed := o.now().Sub(start)
	phaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
	o.bus.Publish(events.Event{Source: events.SourcePipeline, Kind: events.KindPhaseDone,
		Data: map[string]any{"turn_id": turnID, "phase": phase, "elapsed_ms": elapsed.Milliseconds()}})
}
