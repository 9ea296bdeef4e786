package continuity

import (
	"strings"
	"testing"
)

func TestPhraseBankViolations(t *testing.T) {
	b := NewPhraseBank()
	// Pet phrase used twice makes its n-grams violations.
	b.Record("honestly that sounds amazing, tell me more")
	b.Record("wow that sounds amazing yaar")

	v := b.Violations("okay that sounds amazing to me")
	if len(v) == 0 {
		t.Fatal("expected repeated bigram to be flagged")
	}
	found := false
	for _, g := range v {
		if g == "sounds amazing" {
			found = true
		}
	}
	if !found {
		t.Errorf("violations %v missing %q", v, "sounds amazing")
	}
}

func TestPhraseBankNoViolationOnFirstRepeat(t *testing.T) {
	b := NewPhraseBank()
	b.Record("that sounds amazing")
	// Seen once so far; a draft using it again is not yet a violation.
	if v := b.Violations("sounds amazing right"); len(v) != 0 {
		t.Errorf("violations = %v, want none below the repeat threshold", v)
	}
}

func TestPhraseBankDistinctGramsCountOnce(t *testing.T) {
	b := NewPhraseBank()
	b.Record("good luck with the exam")
	b.Record("good luck with everything")

	v := b.Violations("good luck with it, seriously good luck with it")
	counts := make(map[string]int)
	for _, g := range v {
		counts[g]++
	}
	for g, n := range counts {
		if n > 1 {
			t.Errorf("gram %q reported %d times, want once", g, n)
		}
	}
}

func TestPhraseBankEviction(t *testing.T) {
	b := NewPhraseBank()
	b.Record("totally unique starter phrase here")
	b.Record("totally unique starter phrase here")
	if len(b.Violations("totally unique starter phrase")) == 0 {
		t.Fatal("phrase should be flagged before eviction")
	}

	// Push enough filler through to blow the token budget.
	filler := strings.Repeat("different words each time filler padding ", 90)
	b.Record(filler)
	b.Record(filler + "more")

	if v := b.Violations("totally unique starter phrase"); len(v) != 0 {
		t.Errorf("violations = %v, want none after eviction", v)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		violations int
		want       float64
	}{
		{0, 1.0},
		{1, 0.85},
		{2, 0.70},
		{3, 0.55},
		{10, 0.0},
	}
	for _, tt := range tests {
		got := Score(tt.violations)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Score(%d) = %v, want %v", tt.violations, got, tt.want)
		}
	}
}

func TestPasses(t *testing.T) {
	if !Passes(0.70) {
		t.Error("0.70 is on the boundary and should pass")
	}
	if Passes(0.55) {
		t.Error("0.55 should fail")
	}
}

func TestAvoidListCapped(t *testing.T) {
	b := NewPhraseBank()
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("phrase")
		sb.WriteByte('a' + byte(i%26))
		sb.WriteString(" repeated tail ")
	}
	b.Record(sb.String())
	b.Record(sb.String())

	if got := len(b.AvoidList()); got > 20 {
		t.Errorf("avoid list length = %d, want <= 20", got)
	}
}
