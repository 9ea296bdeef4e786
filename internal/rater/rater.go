// Package rater scores candidate responses before delivery. The
// heuristic scorer gates the pipeline synchronously; the LLM rater
// runs asynchronously on a sample of turns for analytics only.
package rater

import (
	"math"
	"regexp"
	"strings"
)

// Dimension weights. Directness dominates: a companion that dodges
// the question fails no matter how warm it sounds.
const (
	weightDirectness = 0.25
	weightEmpathy    = 0.20
	weightBrevity    = 0.15
	weightDiversity  = 0.15
	weightAvoidance  = 0.15
	weightVariety    = 0.10

	// PassThreshold is the single pass bar used everywhere.
	PassThreshold = 0.70
)

// Input is everything the heuristic scorer needs about a candidate.
type Input struct {
	Text string
	// Keywords from the plan; directness checks the response engages them.
	Keywords []string
	// NeedsAnswer is set when the turn was a question.
	NeedsAnswer bool
	// NeedsEmpathy is set when the turn was emotionally charged.
	NeedsEmpathy bool
	// WordCap is the brevity budget in words.
	WordCap int
	// DiversityScore comes from the phrase bank (1 = no repeats).
	DiversityScore float64
	// AvoidPhrases must not appear in the text.
	AvoidPhrases []string
}

// Scores holds per-dimension scores in [0,1] and the weighted overall.
type Scores struct {
	Directness float64 `json:"directness"`
	Empathy    float64 `json:"empathy"`
	Brevity    float64 `json:"brevity"`
	Diversity  float64 `json:"diversity"`
	Avoidance  float64 `json:"avoidance"`
	Variety    float64 `json:"variety"`
	Overall    float64 `json:"overall"`
}

// Pass reports whether the overall score clears the bar.
func (s Scores) Pass() bool {
	return s.Overall >= PassThreshold
}

// Failing lists the dimensions scoring below the bar, for targeted
// re-edit instructions.
func (s Scores) Failing() []string {
	var out []string
	for _, d := range []struct {
		name  string
		score float64
	}{
		{"directness", s.Directness},
		{"empathy", s.Empathy},
		{"brevity", s.Brevity},
		{"diversity", s.Diversity},
		{"avoidance", s.Avoidance},
		{"sentence variety", s.Variety},
	} {
		if d.score < PassThreshold {
			out = append(out, d.name)
		}
	}
	return out
}

var empathyRe = regexp.MustCompile(`(?i)\b(that sounds|i get (it|that)|i hear you|that must|makes sense|i'?m (here|sorry)|rough|tough|proud of you|samajh|dil se)\b`)

// Score runs the heuristic rater.
func Score(in Input) Scores {
	s := Scores{
		Directness: scoreDirectness(in),
		Empathy:    scoreEmpathy(in),
		Brevity:    scoreBrevity(in),
		Diversity:  clamp01(in.DiversityScore),
		Avoidance:  scoreAvoidance(in),
		Variety:    scoreVariety(in.Text),
	}
	s.Overall = weightDirectness*s.Directness +
		weightEmpathy*s.Empathy +
		weightBrevity*s.Brevity +
		weightDiversity*s.Diversity +
		weightAvoidance*s.Avoidance +
		weightVariety*s.Variety
	return s
}

// scoreDirectness checks the response engages the plan keywords, and
// when an answer is owed, that it does not open by deflecting with a
// question of its own.
func scoreDirectness(in Input) float64 {
	lower := strings.ToLower(in.Text)

	score := 1.0
	if len(in.Keywords) > 0 {
		hit := 0
		for _, k := range in.Keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) {
				hit++
			}
		}
		score = float64(hit) / float64(len(in.Keywords))
		// Engaging at least half the keywords is plenty.
		score = math.Min(1, score*2)
	}

	if in.NeedsAnswer {
		first := firstSentence(in.Text)
		if strings.HasSuffix(strings.TrimSpace(first), "?") {
			score *= 0.5
		}
	}
	return clamp01(score)
}

func scoreEmpathy(in Input) float64 {
	if !in.NeedsEmpathy {
		return 1.0
	}
	if empathyRe.MatchString(in.Text) {
		return 1.0
	}
	return 0.3
}

func scoreBrevity(in Input) float64 {
	if in.WordCap <= 0 {
		return 1.0
	}
	words := len(strings.Fields(in.Text))
	if words <= in.WordCap {
		return 1.0
	}
	// Linear falloff; double the cap scores zero.
	over := float64(words-in.WordCap) / float64(in.WordCap)
	return clamp01(1 - over)
}

func scoreAvoidance(in Input) float64 {
	lower := strings.ToLower(in.Text)
	hits := 0
	for _, p := range in.AvoidPhrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			hits++
		}
	}
	return clamp01(1 - 0.5*float64(hits))
}

// scoreVariety rewards mixing short and long sentences. A single
// sentence is fine; identical lengths across several is monotone.
func scoreVariety(text string) float64 {
	lengths := sentenceLengths(text)
	if len(lengths) <= 1 {
		return 1.0
	}
	mean := 0.0
	for _, l := range lengths {
		mean += float64(l)
	}
	mean /= float64(len(lengths))

	variance := 0.0
	for _, l := range lengths {
		d := float64(l) - mean
		variance += d * d
	}
	variance /= float64(len(lengths))

	// Std dev of 2+ words across sentences counts as fully varied.
	return clamp01(math.Sqrt(variance) / 2)
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

func sentenceLengths(text string) []int {
	var out []int
	for _, s := range sentenceSplitRe.Split(text, -1) {
		if n := len(strings.Fields(s)); n > 0 {
			out = append(out, n)
		}
	}
	return out
}

func firstSentence(text string) string {
	idx := strings.IndexAny(text, ".!?")
	if idx < 0 {
		return text
	}
	return text[:idx+1]
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
