// Package style implements linguistic style matching (LSM): extracting
// measurable style features from text, comparing them, and turning a
// target style into natural-language directives for drafting prompts.
package style

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Dimension keys. All are rates in [0,1] except DimSentenceLen, which
// is an average word count and is compared by min/max ratio.
const (
	DimContractions = "contractions"
	DimEmoji        = "emoji"
	DimPunctuation  = "punctuation"
	DimFormality    = "formality"
	DimSentenceLen  = "sentence_len"
	DimQuestions    = "questions"
	DimCaps         = "caps"
	DimCodeMix      = "code_mix"
	DimHedges       = "hedges"
)

// Vector is a sparse style-feature vector. A missing key means the
// dimension could not be measured from the input (e.g. empty text).
type Vector map[string]float64

var (
	contractionRe = regexp.MustCompile(`(?i)\b\w+'(s|t|re|ve|ll|d|m)\b`)
	sentenceRe    = regexp.MustCompile(`[.!?]+`)
	wordRe        = regexp.MustCompile(`[\p{L}\p{N}']+`)
)

// Marker lexicons. Small on purpose — these are rate signals, not
// classifiers.
var (
	informalWords = wordSet("lol", "lmao", "haha", "gonna", "wanna", "gotta",
		"kinda", "dunno", "yeah", "yep", "nah", "btw", "omg", "idk", "tbh",
		"ngl", "fr", "bro", "dude", "hey", "sup")

	formalWords = wordSet("therefore", "however", "furthermore", "regarding",
		"consequently", "nevertheless", "moreover", "accordingly", "hence",
		"whom", "shall")

	// Romanized Hindi markers for code-mixed (Hinglish) speech.
	codeMixWords = wordSet("yaar", "acha", "accha", "haan", "nahi", "nahin",
		"kya", "hai", "bhai", "arre", "arey", "matlab", "bas", "thoda",
		"bohot", "bahut", "kuch", "theek", "chalo", "kyun", "abhi")

	hedgeWords = wordSet("maybe", "perhaps", "probably", "possibly", "kinda",
		"sorta", "somewhat", "guess", "think", "might", "likely", "apparently")
)

func wordSet(words ...string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// Analyze extracts a style vector from text. Returns an empty vector
// for text with no words.
func Analyze(text string) Vector {
	v := Vector{}

	words := wordRe.FindAllString(text, -1)
	if len(words) == 0 {
		return v
	}
	n := float64(len(words))

	v[DimContractions] = float64(len(contractionRe.FindAllString(text, -1))) / n
	v[DimEmoji] = float64(countEmoji(text)) / n
	v[DimPunctuation] = punctuationDensity(text)
	v[DimQuestions] = clamp01(float64(strings.Count(text, "?")) / n)

	var informal, formal, mixed, hedges, caps float64
	for _, w := range words {
		lower := strings.ToLower(w)
		if informalWords[lower] {
			informal++
		}
		if formalWords[lower] {
			formal++
		}
		if codeMixWords[lower] {
			mixed++
		}
		if hedgeWords[lower] {
			hedges++
		}
		if isAllCaps(w) {
			caps++
		}
	}

	// 0.5 is neutral; formal markers pull up, informal markers pull down.
	v[DimFormality] = clamp01(0.5 + (formal-informal)/(2*n))
	v[DimCodeMix] = clamp01(mixed / n)
	v[DimHedges] = clamp01(hedges / n)
	v[DimCaps] = clamp01(caps / n)

	sentences := sentenceRe.Split(strings.TrimSpace(text), -1)
	count := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			count++
		}
	}
	if count == 0 {
		count = 1
	}
	v[DimSentenceLen] = n / float64(count)

	return v
}

// Similarity returns the agreement between two style vectors in [0,1].
// Bounded dimensions score 1-|a-b|; sentence length scores min/max.
// Only dimensions present on both sides contribute; no shared
// dimensions scores 0.
func Similarity(a, b Vector) float64 {
	var sum float64
	var count int

	for dim, av := range a {
		bv, ok := b[dim]
		if !ok {
			continue
		}
		count++

		if dim == DimSentenceLen {
			hi := math.Max(av, bv)
			if hi == 0 {
				sum++
				continue
			}
			sum += math.Min(av, bv) / hi
			continue
		}

		sum += 1 - math.Min(1, math.Abs(av-bv))
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Blend linearly interpolates base toward target by weight w in [0,1].
// A dimension present on only one side carries over unchanged.
func Blend(base, target Vector, w float64) Vector {
	w = clamp01(w)
	out := Vector{}

	for dim, bv := range base {
		if tv, ok := target[dim]; ok {
			out[dim] = bv*(1-w) + tv*w
		} else {
			out[dim] = bv
		}
	}
	for dim, tv := range target {
		if _, ok := base[dim]; !ok {
			out[dim] = tv
		}
	}
	return out
}

// Instructions renders a style vector as prompt directives for the
// drafting and editing calls.
func Instructions(v Vector) string {
	if len(v) == 0 {
		return ""
	}

	var out []string

	if r, ok := v[DimContractions]; ok {
		if r > 0.03 {
			out = append(out, "use contractions naturally (I'm, don't, it's)")
		} else {
			out = append(out, "avoid contractions")
		}
	}
	if r, ok := v[DimEmoji]; ok && r > 0.01 {
		out = append(out, "an occasional emoji is fine, at most one")
	}
	if r, ok := v[DimFormality]; ok {
		if r < 0.45 {
			out = append(out, "keep the register casual and conversational")
		} else if r > 0.55 {
			out = append(out, "keep the register polished, no slang")
		}
	}
	if r, ok := v[DimCodeMix]; ok && r > 0.02 {
		out = append(out, "mirror their Hinglish code-mixing lightly")
	}
	if r, ok := v[DimHedges]; ok && r > 0.05 {
		out = append(out, "soften claims with hedges (maybe, I think)")
	}
	if n, ok := v[DimSentenceLen]; ok {
		if n < 8 {
			out = append(out, "short punchy sentences")
		} else if n > 18 {
			out = append(out, "longer, flowing sentences are okay")
		}
	}
	if r, ok := v[DimQuestions]; ok && r > 0.05 {
		out = append(out, "they ask a lot of questions; direct answers first")
	}

	if len(out) == 0 {
		return ""
	}
	return "Style: " + strings.Join(out, "; ") + "."
}

func countEmoji(text string) int {
	count := 0
	for _, r := range text {
		if (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF) ||
			r == 0x2764 || (r >= 0x1F000 && r <= 0x1F2FF) {
			count++
		}
	}
	return count
}

func punctuationDensity(text string) float64 {
	runes := 0
	punct := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		runes++
		switch r {
		case '!', '?', '.', ',', ';', ':', '…':
			punct++
		}
	}
	if runes == 0 {
		return 0
	}
	return float64(punct) / float64(runes)
}

func isAllCaps(w string) bool {
	letters := 0
	for _, r := range w {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return letters >= 2
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

// Describe is a debugging helper that renders a vector compactly.
func Describe(v Vector) string {
	if len(v) == 0 {
		return "(empty)"
	}
	parts := make([]string, 0, len(v))
	for _, dim := range []string{DimContractions, DimEmoji, DimPunctuation,
		DimFormality, DimSentenceLen, DimQuestions, DimCaps, DimCodeMix, DimHedges} {
		if val, ok := v[dim]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.3f", dim, val))
		}
	}
	return strings.Join(parts, " ")
}
