package continuity

import (
	"strings"
	"unicode"
)

const (
	// stackDepth is how many topic frames the stack keeps: the current
	// topic, the one before it, and one latent topic behind that.
	stackDepth = 3
	// callbackOverlap is the Jaccard similarity above which a new turn
	// counts as returning to a buried topic.
	callbackOverlap = 0.5
)

// Topic is one conversational frame as a bag of content words.
type Topic struct {
	Words map[string]bool
	Label string
}

// TopicStack tracks the last few conversational frames. Index 0 is the
// current topic. Not safe for concurrent use.
type TopicStack struct {
	topics []Topic
}

// NewTopicStack creates an empty stack.
func NewTopicStack() *TopicStack {
	return &TopicStack{}
}

// stopwords excluded from topic bags; keeps Jaccard about content.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"i": true, "you": true, "it": true, "to": true, "of": true, "and": true,
	"in": true, "on": true, "for": true, "my": true, "your": true, "so": true,
	"that": true, "this": true, "with": true, "at": true, "be": true,
	"have": true, "do": true, "not": true, "but": true, "me": true,
	"about": true, "just": true, "what": true, "how": true,
}

func topicWords(text string) map[string]bool {
	out := make(map[string]bool)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if len(w) >= 3 && !stopwords[w] {
			out[w] = true
		}
	}
	return out
}

// Observe folds a user turn into the stack. Overlap with the current
// topic grows that frame; overlap with an older frame promotes it back
// to current. The callback flag fires only for the latent frame at the
// bottom of the stack — resuming the topic directly below current is
// ordinary turn flow, not a callback worth surfacing.
func (s *TopicStack) Observe(text string) (callback bool, resumed Topic) {
	words := topicWords(text)
	if len(words) == 0 {
		return false, Topic{}
	}

	if len(s.topics) > 0 && jaccard(words, s.topics[0].Words) > callbackOverlap {
		for w := range words {
			s.topics[0].Words[w] = true
		}
		return false, Topic{}
	}

	for i := 1; i < len(s.topics); i++ {
		if jaccard(words, s.topics[i].Words) > callbackOverlap {
			latent := i == stackDepth-1
			t := s.topics[i]
			s.topics = append(s.topics[:i], s.topics[i+1:]...)
			for w := range words {
				t.Words[w] = true
			}
			s.topics = append([]Topic{t}, s.topics...)
			if !latent {
				return false, Topic{}
			}
			return true, t
		}
	}

	t := Topic{Words: words, Label: label(words)}
	s.topics = append([]Topic{t}, s.topics...)
	if len(s.topics) > stackDepth {
		s.topics = s.topics[:stackDepth]
	}
	return false, Topic{}
}

// Current returns the active topic, if any.
func (s *TopicStack) Current() (Topic, bool) {
	if len(s.topics) == 0 {
		return Topic{}, false
	}
	return s.topics[0], true
}

// Depth returns how many frames the stack holds.
func (s *TopicStack) Depth() int {
	return len(s.topics)
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func label(words map[string]bool) string {
	// First few words alphabetically; stable and good enough for logs.
	var ws []string
	for w := range words {
		ws = append(ws, w)
	}
	for i := 0; i < len(ws); i++ {
		for j := i + 1; j < len(ws); j++ {
			if ws[j] < ws[i] {
				ws[i], ws[j] = ws[j], ws[i]
			}
		}
	}
	if len(ws) > 3 {
		ws = ws[:3]
	}
	return strings.Join(ws, " ")
}
