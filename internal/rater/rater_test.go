package rater

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/codewithayuu/kira-chan-sub000/internal/llm"
)

func TestScoreGoodResponse(t *testing.T) {
	s := Score(Input{
		Text:           "Oof, exams are rough. You've prepped way more than you think! Want to run through the tricky bits together tonight?",
		Keywords:       []string{"exam"},
		NeedsEmpathy:   true,
		WordCap:        160,
		DiversityScore: 1.0,
	})
	if !s.Pass() {
		t.Errorf("overall = %v, want >= %v (scores %+v)", s.Overall, PassThreshold, s)
	}
	if len(s.Failing()) != 0 {
		t.Errorf("Failing() = %v, want none", s.Failing())
	}
}

func TestScoreEmpathyMissing(t *testing.T) {
	s := Score(Input{
		Text:           "The exam syllabus covers chapters four through nine. Review them in order.",
		Keywords:       []string{"exam"},
		NeedsEmpathy:   true,
		WordCap:        160,
		DiversityScore: 1.0,
	})
	if s.Empathy >= PassThreshold {
		t.Errorf("Empathy = %v for a reply with no emotional acknowledgment", s.Empathy)
	}
	failing := strings.Join(s.Failing(), ",")
	if !strings.Contains(failing, "empathy") {
		t.Errorf("Failing() = %v, want empathy listed", s.Failing())
	}
}

func TestScoreBrevityOverCap(t *testing.T) {
	long := strings.Repeat("word ", 50)
	s := Score(Input{Text: long, WordCap: 25, DiversityScore: 1.0})
	if s.Brevity != 0 {
		t.Errorf("Brevity = %v for double the cap, want 0", s.Brevity)
	}

	s = Score(Input{Text: strings.Repeat("word ", 25), WordCap: 25, DiversityScore: 1.0})
	if s.Brevity != 1 {
		t.Errorf("Brevity = %v at the cap, want 1", s.Brevity)
	}
}

func TestScoreAvoidancePenalty(t *testing.T) {
	s := Score(Input{
		Text:           "That sounds amazing, truly amazing stuff.",
		AvoidPhrases:   []string{"sounds amazing"},
		DiversityScore: 1.0,
	})
	if s.Avoidance != 0.5 {
		t.Errorf("Avoidance = %v with one avoid-phrase hit, want 0.5", s.Avoidance)
	}
}

func TestScoreDirectnessDeflection(t *testing.T) {
	deflecting := Score(Input{
		Text:           "Why do you ask? There's a lot going on with trains.",
		Keywords:       []string{"train"},
		NeedsAnswer:    true,
		DiversityScore: 1.0,
	})
	direct := Score(Input{
		Text:           "Take the 9am train. It's faster and you'll get a seat.",
		Keywords:       []string{"train"},
		NeedsAnswer:    true,
		DiversityScore: 1.0,
	})
	if deflecting.Directness >= direct.Directness {
		t.Errorf("deflecting %v should score below direct %v", deflecting.Directness, direct.Directness)
	}
}

func TestScoreVariety(t *testing.T) {
	monotone := scoreVariety("This has five words here. That has five words too. Here are five more words.")
	varied := scoreVariety("Whoa. That changes everything about how we planned the whole weekend, honestly. Right?")
	if monotone >= varied {
		t.Errorf("monotone %v should score below varied %v", monotone, varied)
	}
	if got := scoreVariety("Just one sentence."); got != 1.0 {
		t.Errorf("single sentence variety = %v, want 1", got)
	}
}

func TestParseScores(t *testing.T) {
	text := "Sure! Here's the grade:\n```json\n{\"empathy\":0.8,\"directness\":0.9,\"brevity\":0.7,\"humanness\":0.85,\"overall\":0.82,\"grade\":\"B\"}\n```"
	s, err := parseScores(text)
	if err != nil {
		t.Fatalf("parseScores() error: %v", err)
	}
	if s.Overall != 0.82 || s.Grade != "B" {
		t.Errorf("got %+v", s)
	}

	if _, err := parseScores("no json here"); err == nil {
		t.Error("expected error for text without JSON")
	}
}

type fakeChatter struct {
	text string
	err  error
}

func (f *fakeChatter) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text}, nil
}

func TestLLMRaterRate(t *testing.T) {
	r := NewLLMRater(&fakeChatter{text: `{"empathy":0.9,"directness":0.8,"brevity":0.9,"humanness":0.9,"overall":0.88,"grade":"A"}`}, 0, nil)
	s, err := r.Rate(context.Background(), "hi", "hello!")
	if err != nil {
		t.Fatalf("Rate() error: %v", err)
	}
	if s.Grade != "A" || s.Overall != 0.88 {
		t.Errorf("got %+v", s)
	}
}

func TestLLMRaterRateError(t *testing.T) {
	r := NewLLMRater(&fakeChatter{err: errors.New("down")}, 0, nil)
	if _, err := r.Rate(context.Background(), "hi", "hello!"); err == nil {
		t.Error("expected error when the chat call fails")
	}
}

// MaybeSample is called from concurrently running turns; the race
// detector keeps the sampling roll honest.
func TestLLMRaterMaybeSampleConcurrent(t *testing.T) {
	r := NewLLMRater(&fakeChatter{text: "{}"}, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.MaybeSample("hi", "hello!")
		}()
	}
	wg.Wait()
}
