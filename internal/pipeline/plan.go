// Package pipeline orchestrates one conversational turn: perceive,
// recall, plan, draft, edit, rate, re-edit, post-process, deliver,
// learn. Every phase degrades to a safe default on failure; only input
// validation and a total provider outage are user-visible.
package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/codewithayuu/kira-chan-sub000/internal/dialog"
)

// Plan is the structured output of the planning call. The planner
// model must return it as strict JSON; anything unparseable collapses
// to DefaultPlan.
type Plan struct {
	Intent   string   `json:"intent"`
	Tone     string   `json:"tone"`
	Brevity  string   `json:"brevity"`
	Empathy  bool     `json:"empathy"`
	Beats    []string `json:"beats"`
	Avoid    []string `json:"avoid"`
	Keywords []string `json:"keywords"`
}

// DefaultPlan is the conservative fallback when planning fails: just
// respond, neutrally, at medium length.
func DefaultPlan() Plan {
	return Plan{
		Intent:  "respond",
		Tone:    "neutral",
		Brevity: string(dialog.BrevityMedium),
		Avoid:   []string{},
	}
}

// ParsePlan extracts a Plan from model output, tolerating prose or
// code fences around the JSON. Returns DefaultPlan and false when no
// valid plan can be recovered.
func ParsePlan(text string) (Plan, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return DefaultPlan(), false
	}
	var p Plan
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return DefaultPlan(), false
	}
	if p.Intent == "" {
		p.Intent = "respond"
	}
	if p.Tone == "" {
		p.Tone = "neutral"
	}
	switch dialog.Brevity(p.Brevity) {
	case dialog.BrevityShort, dialog.BrevityMedium, dialog.BrevityLong:
	default:
		p.Brevity = string(dialog.BrevityMedium)
	}
	if p.Avoid == nil {
		p.Avoid = []string{}
	}
	return p, true
}

// WordCap converts the plan's brevity into a word budget for
// post-processing. Token budgets are for the model; the word cap is
// the hard guardrail applied to what actually ships.
func (p Plan) WordCap() int {
	switch dialog.Brevity(p.Brevity) {
	case dialog.BrevityShort:
		return 80
	case dialog.BrevityLong:
		return 240
	default:
		return 160
	}
}

// MergeAvoid folds the anti-repetition avoid list into the plan,
// dropping duplicates.
func (p *Plan) MergeAvoid(phrases []string) {
	seen := make(map[string]bool, len(p.Avoid))
	for _, a := range p.Avoid {
		seen[strings.ToLower(a)] = true
	}
	for _, ph := range phrases {
		if ph == "" || seen[strings.ToLower(ph)] {
			continue
		}
		seen[strings.ToLower(ph)] = true
		p.Avoid = append(p.Avoid, ph)
	}
}
