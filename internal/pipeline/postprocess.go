package pipeline

import (
	"math/rand"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/codewithayuu/kira-chan-sub000/internal/dialog"
)

const (
	// backchannelCooldown is the minimum gap between backchannels for
	// one user.
	backchannelCooldown = 60 * time.Second
	// backchannelChance is the probability of prepending a backchannel
	// when the turn qualifies at all.
	backchannelChance = 0.2
	// longTurnWords qualifies a turn for a backchannel by length alone.
	longTurnWords = 40
	// maxEmoji is the hard emoji cap per response.
	maxEmoji = 1
)

// backchannels by mood; picked uniformly within the matching set.
var (
	negativeBackchannels = []string{"oh no,", "oof,", "arre,", "hmm,"}
	positiveBackchannels = []string{"ooh,", "arre wah,", "okay okay,"}
)

// postProcess applies the delivery guardrails: strip residual
// avoid-phrases, cap emoji, enforce the word budget, and maybe prepend
// a backchannel. It never fails; worst case it returns the text as-is.
func postProcess(text string, plan Plan, emotion dialog.Emotion, userWords int, sess *Session, now time.Time, rng *rand.Rand) string {
	out := stripPhrases(text, plan.Avoid)
	out = capEmoji(out, maxEmoji)
	out = capWords(out, plan.WordCap())

	qualifies := emotion.Charged() || userWords >= longTurnWords
	if qualifies && rng.Float64() < backchannelChance && sess.BackchannelAllowed(now, backchannelCooldown) {
		pool := positiveBackchannels
		if emotion.Valence < 0 {
			pool = negativeBackchannels
		}
		bc := pool[rng.Intn(len(pool))]
		if !strings.HasPrefix(strings.ToLower(out), strings.TrimSuffix(bc, ",")) {
			out = bc + " " + lowerFirst(out)
		}
	}
	return strings.TrimSpace(out)
}

// stripPhrases removes avoid-phrases case-insensitively, tolerating
// flexible whitespace between the phrase's words.
func stripPhrases(text string, phrases []string) string {
	for _, p := range phrases {
		words := strings.Fields(p)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		re, err := regexp.Compile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "")
	}
	// Collapse the whitespace holes left behind.
	text = regexp.MustCompile(`[ \t]{2,}`).ReplaceAllString(text, " ")
	text = regexp.MustCompile(` ([,.!?])`).ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// capEmoji keeps the first n emoji and drops the rest.
func capEmoji(text string, n int) string {
	var b strings.Builder
	kept := 0
	for _, r := range text {
		if isEmoji(r) {
			if kept >= n {
				continue
			}
			kept++
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF)
}

// capWords truncates over-budget text, preferring the last full
// sentence inside the budget.
func capWords(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	truncated := strings.Join(words[:limit], " ")
	if idx := strings.LastIndexAny(truncated, ".!?"); idx > len(truncated)/2 {
		return truncated[:idx+1]
	}
	return truncated + "…"
}

func lowerFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToLower(r)) + s[i+len(string(r)):]
	}
	return s
}
