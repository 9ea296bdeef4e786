package style

import (
	"math"
	"strings"
	"testing"
)

func TestAnalyzeBasicFeatures(t *testing.T) {
	v := Analyze("I'm gonna be there! Don't worry, it's fine. What time?")

	if v[DimContractions] == 0 {
		t.Error("expected nonzero contraction rate")
	}
	if v[DimQuestions] == 0 {
		t.Error("expected nonzero question rate")
	}
	if v[DimFormality] >= 0.5 {
		t.Errorf("formality = %v, want below neutral for informal text", v[DimFormality])
	}
	if v[DimSentenceLen] <= 0 {
		t.Errorf("sentence_len = %v, want positive", v[DimSentenceLen])
	}
}

func TestAnalyzeEmptyText(t *testing.T) {
	if v := Analyze("   "); len(v) != 0 {
		t.Errorf("Analyze(blank) = %v, want empty vector", v)
	}
}

func TestAnalyzeCodeMix(t *testing.T) {
	v := Analyze("arre yaar kya kar raha hai, bohot busy day tha")
	if v[DimCodeMix] == 0 {
		t.Error("expected nonzero code-mix rate for Hinglish text")
	}

	plain := Analyze("I had a very busy day at the office today")
	if plain[DimCodeMix] != 0 {
		t.Errorf("code_mix = %v for plain English, want 0", plain[DimCodeMix])
	}
}

func TestAnalyzeAllCaps(t *testing.T) {
	v := Analyze("this is SO COOL honestly")
	if v[DimCaps] == 0 {
		t.Error("expected nonzero caps rate")
	}
	// Single capital letters ("I", "A") don't count.
	v = Analyze("I think A plan works")
	if v[DimCaps] != 0 {
		t.Errorf("caps = %v, want 0 for single capitals", v[DimCaps])
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	samples := []string{
		"hey what's up lol",
		"I would prefer to discuss this matter tomorrow. However, I remain available.",
		"arre yaar kya scene hai? chalo coffee?",
		"MAYBE we could kinda sorta figure it out?!",
	}

	for i, s1 := range samples {
		for j, s2 := range samples {
			a, b := Analyze(s1), Analyze(s2)
			ab, ba := Similarity(a, b), Similarity(b, a)
			if math.Abs(ab-ba) > 1e-12 {
				t.Errorf("similarity(%d,%d) not symmetric: %v vs %v", i, j, ab, ba)
			}
		}
	}
}

func TestSimilarityIdentity(t *testing.T) {
	v := Analyze("hey, I'm around if you wanna talk! what happened?")
	if got := Similarity(v, v); math.Abs(got-1) > 1e-12 {
		t.Errorf("self-similarity = %v, want 1", got)
	}
}

func TestSimilarityNoSharedDimensions(t *testing.T) {
	a := Vector{DimEmoji: 0.1}
	b := Vector{DimHedges: 0.2}
	if got := Similarity(a, b); got != 0 {
		t.Errorf("similarity = %v, want 0 for disjoint vectors", got)
	}
}

func TestBlendBoundaries(t *testing.T) {
	base := Analyze("hey lol what's up, you good?")
	target := Analyze("I shall attend the meeting. However, I may be delayed.")

	for dim, want := range base {
		got := Blend(base, target, 0)[dim]
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("blend(w=0)[%s] = %v, want base %v", dim, got, want)
		}
	}
	for dim, want := range target {
		got := Blend(base, target, 1)[dim]
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("blend(w=1)[%s] = %v, want target %v", dim, got, want)
		}
	}
}

func TestBlendMissingDimensions(t *testing.T) {
	base := Vector{DimEmoji: 0.4}
	target := Vector{DimHedges: 0.2}

	out := Blend(base, target, 0.5)
	if out[DimEmoji] != 0.4 {
		t.Errorf("emoji = %v, want base value carried over", out[DimEmoji])
	}
	if out[DimHedges] != 0.2 {
		t.Errorf("hedges = %v, want target value carried over", out[DimHedges])
	}
}

func TestInstructions(t *testing.T) {
	v := Analyze("arre yaar I'm kinda maybe gonna be late lol, that okay?")
	directives := Instructions(v)
	if directives == "" {
		t.Fatal("expected non-empty directives")
	}
	if !strings.HasPrefix(directives, "Style: ") {
		t.Errorf("directives = %q, want Style: prefix", directives)
	}

	if got := Instructions(Vector{}); got != "" {
		t.Errorf("Instructions(empty) = %q, want empty", got)
	}
}

func TestProfileObserveEMA(t *testing.T) {
	s := NewProfileStore()

	first := Vector{DimEmoji: 1.0}
	got := s.Observe("u1", first)
	if got[DimEmoji] != 1.0 {
		t.Errorf("first observation = %v, want adopted as-is", got[DimEmoji])
	}

	second := Vector{DimEmoji: 0.0}
	got = s.Observe("u1", second)
	want := 1.0*(1-0.3) + 0.0*0.3
	if math.Abs(got[DimEmoji]-want) > 1e-12 {
		t.Errorf("after second observation = %v, want %v", got[DimEmoji], want)
	}
}

func TestProfileIsolatedPerUser(t *testing.T) {
	s := NewProfileStore()
	s.Observe("u1", Vector{DimEmoji: 1.0})

	if got := s.Get("u2"); len(got) != 0 {
		t.Errorf("u2 profile = %v, want empty", got)
	}
}

func TestProfileGetReturnsCopy(t *testing.T) {
	s := NewProfileStore()
	s.Observe("u1", Vector{DimEmoji: 0.5})

	got := s.Get("u1")
	got[DimEmoji] = 99

	if s.Get("u1")[DimEmoji] != 0.5 {
		t.Error("mutating the returned vector leaked into the store")
	}
}
