package style

import "sync"

// smoothing is the EMA factor applied per observed turn.
const smoothing = 0.3

// ProfileStore tracks a per-user style profile as an exponential moving
// average over observed turns. Safe for concurrent use across turns.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]Vector
}

// NewProfileStore creates an empty profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]Vector)}
}

// Observe folds a new turn's style vector into the user's profile with
// smoothing factor 0.3 and returns the updated profile. Dimensions
// missing from the observation keep their previous value; dimensions
// never seen before are adopted as-is.
func (s *ProfileStore) Observe(userID string, observed Vector) Vector {
	if len(observed) == 0 {
		return s.Get(userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.profiles[userID]
	if !ok {
		s.profiles[userID] = cloneVector(observed)
		return cloneVector(observed)
	}

	next := cloneVector(prev)
	for dim, obs := range observed {
		if old, ok := next[dim]; ok {
			next[dim] = old*(1-smoothing) + obs*smoothing
		} else {
			next[dim] = obs
		}
	}
	s.profiles[userID] = next
	return cloneVector(next)
}

// Get returns a copy of the user's current profile, or an empty vector
// if the user has no history.
func (s *ProfileStore) Get(userID string) Vector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.profiles[userID]; ok {
		return cloneVector(v)
	}
	return Vector{}
}

func cloneVector(v Vector) Vector {
	out := make(Vector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
