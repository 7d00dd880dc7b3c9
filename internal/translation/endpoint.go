package translation

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type endpointState struct {
	url         string
	failures    int
	bannedUntil time.Time
}

// Tracker hands out translation endpoints round-robin and temporarily
// bans endpoints that keep failing. A banned endpoint rejoins the
// rotation once its ban expires.
type Tracker struct {
	mu        sync.Mutex
	states    []*endpointState
	next      int
	threshold int
	banFor    time.Duration
}

// NewTracker builds a tracker over urls. threshold is the consecutive
// failure count that triggers a ban of banFor; a threshold of zero
// disables banning.
func NewTracker(urls []string, threshold int, banFor time.Duration) *Tracker {
	t := &Tracker{threshold: threshold, banFor: banFor}
	for _, u := range urls {
		t.states = append(t.states, &endpointState{url: u})
	}
	return t
}

// PickN returns up to n distinct usable endpoints, advancing the
// round-robin cursor. It returns fewer, possibly none, when bans have
// thinned the pool.
func (t *Tracker) PickN(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.states) == 0 || n <= 0 {
		return nil
	}
	now := time.Now()
	var out []string
	for scanned := 0; scanned < len(t.states) && len(out) < n; scanned++ {
		s := t.states[t.next%len(t.states)]
		t.next++
		if now.Before(s.bannedUntil) {
			continue
		}
		out = append(out, s.url)
	}
	return out
}

// Success clears the failure streak of an endpoint.
func (t *Tracker) Success(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.find(url); s != nil {
		s.failures = 0
	}
}

// Failure records a failed request. Crossing the threshold bans the
// endpoint and resets its streak so it starts clean after the ban.
func (t *Tracker) Failure(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.find(url)
	if s == nil {
		return
	}
	s.failures++
	if t.threshold > 0 && s.failures >= t.threshold {
		s.bannedUntil = time.Now().Add(t.banFor)
		s.failures = 0
		log.Warn().
			Str("endpoint", url).
			Dur("ban", t.banFor).
			Msg("Endpoint banned after repeated failures")
	}
}

// ResetBans lifts every ban and clears all failure streaks.
func (t *Tracker) ResetBans() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.states {
		s.bannedUntil = time.Time{}
		s.failures = 0
	}
}

// Available counts the endpoints currently in rotation.
func (t *Tracker) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	n := 0
	for _, s := range t.states {
		if !now.Before(s.bannedUntil) {
			n++
		}
	}
	return n
}

// Len returns the total endpoint count, banned or not.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

func (t *Tracker) find(url string) *endpointState {
	for _, s := range t.states {
		if s.url == url {
			return s
		}
	}
	return nil
}
