// Package continuity tracks what the companion has recently said and
// talked about, so responses avoid repeating pet phrases and can call
// back to earlier topics naturally.
package continuity

import (
	"strings"
	"unicode"
)

const (
	// tokenBudget bounds how much recent output the bank remembers.
	// Oldest responses fall off first.
	tokenBudget = 1000
	// repeatThreshold is how many recent occurrences make an n-gram a
	// violation when it shows up again in a draft.
	repeatThreshold = 2
	// avoidListCap bounds the avoid list passed into prompts.
	avoidListCap = 20
	// diversityPenalty is the score cost per violating n-gram.
	diversityPenalty = 0.15
	// passScore is the minimum diversity score for a draft to pass.
	passScore = 0.7
)

// PhraseBank holds the bigrams and trigrams of recent assistant
// responses inside a sliding token window. Not safe for concurrent
// use; the session owns one bank per user.
type PhraseBank struct {
	responses []bankedResponse
	tokens    int
	counts    map[string]int
}

type bankedResponse struct {
	grams  []string
	tokens int
}

// NewPhraseBank creates an empty bank.
func NewPhraseBank() *PhraseBank {
	return &PhraseBank{counts: make(map[string]int)}
}

// Record adds a delivered response to the bank and evicts the oldest
// responses once the token budget is exceeded.
func (b *PhraseBank) Record(text string) {
	words := tokenize(text)
	if len(words) == 0 {
		return
	}
	grams := ngrams(words)
	b.responses = append(b.responses, bankedResponse{grams: grams, tokens: len(words)})
	b.tokens += len(words)
	for _, g := range grams {
		b.counts[g]++
	}

	for b.tokens > tokenBudget && len(b.responses) > 1 {
		old := b.responses[0]
		b.responses = b.responses[1:]
		b.tokens -= old.tokens
		for _, g := range old.grams {
			if b.counts[g]--; b.counts[g] <= 0 {
				delete(b.counts, g)
			}
		}
	}
}

// Violations returns the n-grams in a draft that the bank has already
// seen at least twice. Each distinct repeated n-gram counts once.
func (b *PhraseBank) Violations(draft string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range ngrams(tokenize(draft)) {
		if seen[g] {
			continue
		}
		seen[g] = true
		if b.counts[g] >= repeatThreshold {
			out = append(out, g)
		}
	}
	return out
}

// Score converts violations into a diversity score in [0,1].
func Score(violations int) float64 {
	s := 1.0 - diversityPenalty*float64(violations)
	if s < 0 {
		return 0
	}
	return s
}

// Passes reports whether a diversity score clears the repetition bar.
func Passes(score float64) bool {
	return score >= passScore
}

// AvoidList returns the most-repeated n-grams as phrases to steer the
// draft away from, capped so prompts stay small.
func (b *PhraseBank) AvoidList() []string {
	var out []string
	for g, n := range b.counts {
		if n >= repeatThreshold {
			out = append(out, g)
		}
	}
	if len(out) > avoidListCap {
		out = out[:avoidListCap]
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func ngrams(words []string) []string {
	var out []string
	for i := 0; i+1 < len(words); i++ {
		out = append(out, words[i]+" "+words[i+1])
		if i+2 < len(words) {
			out = append(out, words[i]+" "+words[i+1]+" "+words[i+2])
		}
	}
	return out
}
