package continuity

import "testing"

func TestTopicStackPushAndDepth(t *testing.T) {
	s := NewTopicStack()
	s.Observe("my chemistry exam is next friday")
	s.Observe("ordered biryani from the new place")
	s.Observe("thinking about adopting a kitten")
	s.Observe("the monsoon flooded our street again")

	if s.Depth() != 3 {
		t.Errorf("Depth() = %d, want 3", s.Depth())
	}
	cur, ok := s.Current()
	if !ok || !cur.Words["monsoon"] {
		t.Errorf("current topic = %+v, want monsoon frame", cur)
	}
}

func TestTopicStackSameTopicExtends(t *testing.T) {
	s := NewTopicStack()
	s.Observe("my chemistry exam is next friday")
	cb, _ := s.Observe("chemistry exam friday revision")
	if cb {
		t.Error("continuing the current topic is not a callback")
	}
	if s.Depth() != 1 {
		t.Errorf("Depth() = %d, want 1", s.Depth())
	}
	cur, _ := s.Current()
	if !cur.Words["revision"] {
		t.Error("current frame should absorb new words")
	}
}

func TestTopicStackCallback(t *testing.T) {
	s := NewTopicStack()
	s.Observe("my chemistry exam is next friday morning")
	s.Observe("ordered biryani from the new place downtown")
	s.Observe("thinking about adopting a kitten")

	// The exam topic is now buried at the bottom of the stack.
	cb, resumed := s.Observe("chemistry exam friday morning, wish me luck")
	if !cb {
		t.Fatal("returning to the buried exam topic should be a callback")
	}
	if !resumed.Words["chemistry"] {
		t.Errorf("resumed topic = %+v", resumed)
	}
	cur, _ := s.Current()
	if !cur.Words["chemistry"] {
		t.Error("resumed topic should be promoted to current")
	}
}

func TestTopicStackLastFrameResumesWithoutCallback(t *testing.T) {
	s := NewTopicStack()
	s.Observe("my chemistry exam is next friday morning")
	s.Observe("ordered biryani from the new place downtown")

	// The exam topic sits directly below current, not in the latent
	// slot, so resuming it is ordinary turn flow.
	cb, _ := s.Observe("chemistry exam friday morning, wish me luck")
	if cb {
		t.Error("topic directly below current is not a callback")
	}
	if s.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", s.Depth())
	}
	cur, _ := s.Current()
	if !cur.Words["chemistry"] {
		t.Error("resumed topic should still be promoted to current")
	}
}

func TestTopicStackEmptyTurn(t *testing.T) {
	s := NewTopicStack()
	cb, _ := s.Observe("ok so, it is")
	if cb {
		t.Error("stopword-only turn is never a callback")
	}
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", s.Depth())
	}
}

func TestJaccard(t *testing.T) {
	a := map[string]bool{"exam": true, "chemistry": true, "friday": true}
	b := map[string]bool{"exam": true, "chemistry": true, "biryani": true}
	got := jaccard(a, b)
	want := 2.0 / 4.0
	if got != want {
		t.Errorf("jaccard = %v, want %v", got, want)
	}
	if jaccard(a, map[string]bool{}) != 0 {
		t.Error("jaccard with empty set should be 0")
	}
}
