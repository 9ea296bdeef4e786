package dialog

import "testing"

func TestDetectEmotion(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantLabel   string
		wantValNeg  bool
		wantCharged bool
	}{
		{"stressed", "I'm so stressed about my exam tomorrow", "distress", true, true},
		{"sad low arousal", "feeling kinda lonely tonight", "sadness", true, true},
		{"tired", "just tired from work", "fatigue", true, false},
		{"excited", "I can't wait for the trip!!", "joy", false, true},
		{"calm positive", "had a relaxed sunday, pretty happy", "contentment", false, true},
		{"neutral", "the train leaves at nine", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DetectEmotion(tt.text)
			if e.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", e.Label, tt.wantLabel)
			}
			if tt.wantValNeg && e.Valence >= 0 {
				t.Errorf("Valence = %v, want negative", e.Valence)
			}
			if !tt.wantValNeg && e.Valence < 0 {
				t.Errorf("Valence = %v, want non-negative", e.Valence)
			}
			if e.Charged() != tt.wantCharged {
				t.Errorf("Charged() = %v, want %v", e.Charged(), tt.wantCharged)
			}
		})
	}
}

func TestDetectEmotionArousalBoosts(t *testing.T) {
	plain := DetectEmotion("I'm angry about this")
	loud := DetectEmotion("I'm SO ANGRY ABOUT THIS!!!")
	if loud.Arousal <= plain.Arousal {
		t.Errorf("shouting arousal %v not above plain %v", loud.Arousal, plain.Arousal)
	}
	if loud.Arousal > 1 {
		t.Errorf("arousal %v exceeds 1", loud.Arousal)
	}
}

func TestMoodHint(t *testing.T) {
	tests := []struct {
		e    Emotion
		want string
	}{
		{Emotion{}, "neutral"},
		{Emotion{Label: "distress", Valence: -0.7, Arousal: 0.8}, "concerned"},
		{Emotion{Label: "sadness", Valence: -0.7, Arousal: 0.3}, "soft"},
		{Emotion{Label: "joy", Valence: 0.8, Arousal: 0.8}, "excited"},
		{Emotion{Label: "contentment", Valence: 0.6, Arousal: 0.3}, "warm"},
	}
	for _, tt := range tests {
		if got := MoodHint(tt.e); got != tt.want {
			t.Errorf("MoodHint(%+v) = %q, want %q", tt.e, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(Emotion{}); got != "neutral" {
		t.Errorf("Summarize(zero) = %q", got)
	}
	if got := Summarize(Emotion{Label: "distress", Arousal: 0.8}); got != "strong distress" {
		t.Errorf("Summarize = %q", got)
	}
	if got := Summarize(Emotion{Label: "fatigue", Arousal: 0.2}); got != "mild fatigue" {
		t.Errorf("Summarize = %q", got)
	}
}
