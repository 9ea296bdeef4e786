package dialog

import (
	"regexp"
	"strings"
)

// Emotion is a coarse valence/arousal read of a user turn. Valence is
// -1..1, arousal 0..1. Label is the dominant keyword group, or "" when
// nothing emotional was detected.
type Emotion struct {
	Valence float64
	Arousal float64
	Label   string
}

// Charged reports whether the turn is emotionally loaded enough that
// the response must reflect the emotion before anything else.
func (e Emotion) Charged() bool {
	return e.Valence <= -0.5 || e.Valence >= 0.5 || e.Arousal >= 0.6
}

// keyword groups with their valence/arousal contributions.
var emotionLexicon = []struct {
	label   string
	re      *regexp.Regexp
	valence float64
	arousal float64
}{
	{"distress", regexp.MustCompile(`(?i)\b(stressed|anxious|panic|panicking|scared|terrified|freaking out|overwhelmed|nervous)\b`), -0.7, 0.8},
	{"anger", regexp.MustCompile(`(?i)\b(angry|furious|pissed|annoyed|frustrated|gussa)\b`), -0.7, 0.7},
	{"sadness", regexp.MustCompile(`(?i)\b(sad|lonely|depressed|down|miserable|crying|cried|miss (you|him|her|them)|udaas)\b`), -0.7, 0.3},
	{"fatigue", regexp.MustCompile(`(?i)\b(tired|exhausted|drained|burnt out|burned out|thaka)\b`), -0.4, 0.2},
	{"joy", regexp.MustCompile(`(?i)\b(excited|thrilled|can'?t wait|yay|woohoo|amazing news|so happy|ecstatic)\b`), 0.8, 0.8},
	{"contentment", regexp.MustCompile(`(?i)\b(happy|glad|good mood|relaxed|calm|peaceful|content|khush)\b`), 0.6, 0.3},
}

var exclaimRe = regexp.MustCompile(`!{1,}`)

// DetectEmotion scores a turn by keyword groups, then boosts arousal
// for exclamation marks and shouting caps. The strongest matching
// group supplies the label and valence; arousal takes the max across
// matches plus surface cues.
func DetectEmotion(text string) Emotion {
	var e Emotion
	var strongest float64

	for _, g := range emotionLexicon {
		if !g.re.MatchString(text) {
			continue
		}
		if mag := abs(g.valence); mag > strongest {
			strongest = mag
			e.Valence = g.valence
			e.Label = g.label
		}
		if g.arousal > e.Arousal {
			e.Arousal = g.arousal
		}
	}

	if n := len(exclaimRe.FindAllString(text, -1)); n > 0 {
		e.Arousal += 0.1 * float64(min(n, 3))
	}
	if isShouting(text) {
		e.Arousal += 0.2
	}
	if e.Arousal > 1 {
		e.Arousal = 1
	}
	return e
}

func isShouting(text string) bool {
	letters, upper := 0, 0
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	return letters >= 6 && float64(upper)/float64(letters) > 0.7
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// MoodHint maps an emotion to a short token the UI can use for
// avatar expression, mirroring the labels the persona prompts use.
func MoodHint(e Emotion) string {
	switch {
	case e.Label == "":
		return "neutral"
	case e.Valence < 0 && e.Arousal >= 0.6:
		return "concerned"
	case e.Valence < 0:
		return "soft"
	case e.Arousal >= 0.6:
		return "excited"
	default:
		return "warm"
	}
}

// Summarize renders an emotion as a compact phrase for prompt context.
func Summarize(e Emotion) string {
	if e.Label == "" {
		return "neutral"
	}
	intensity := "mild"
	if e.Arousal >= 0.6 {
		intensity = "strong"
	}
	return strings.Join([]string{intensity, e.Label}, " ")
}
