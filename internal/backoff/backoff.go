// Package backoff computes failure cooldowns per (provider, credential
// identity). Delay computation is pure; the scheduler only records state
// and answers "is a retry due yet" — waiting is the caller's problem.
package backoff

import (
	"sync"
	"time"

	"github.com/af-corp/pulseboard/internal/types"
)

type key struct {
	provider   types.ProviderID
	credential types.CredentialIdentity
}

// state tracks consecutive failures for one key. attempts resets to zero
// on any success; nextAllowedAt never moves backward while attempts grow.
type state struct {
	mu            sync.Mutex
	attempts      int
	nextAllowedAt time.Time
}

// Scheduler computes exponential backoff delays with a cap.
type Scheduler struct {
	mu     sync.RWMutex
	states map[key]*state

	base        time.Duration
	max         time.Duration
	capExponent int
	now         func() time.Time
}

func NewScheduler(base, max time.Duration, capExponent int) *Scheduler {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max < base {
		max = base
	}
	if capExponent < 0 {
		capExponent = 0
	}
	return &Scheduler{
		states:      make(map[key]*state),
		base:        base,
		max:         max,
		capExponent: capExponent,
		now:         time.Now,
	}
}

func (s *Scheduler) getState(k key) *state {
	s.mu.RLock()
	st, ok := s.states[k]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[k]; ok {
		return st
	}
	st = &state{}
	s.states[k] = st
	return st
}

// Delay is the pure schedule: base * 2^min(attempt-1, cap) for the given
// failure count, capped at max. Zero attempts means no delay.
func (s *Scheduler) Delay(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	exp := attempts - 1
	if exp > s.capExponent {
		exp = s.capExponent
	}
	d := s.base << uint(exp)
	if d > s.max || d <= 0 {
		d = s.max
	}
	return d
}

// NextDelay returns the delay the current failure streak imposes.
func (s *Scheduler) NextDelay(provider types.ProviderID, credential types.CredentialIdentity) time.Duration {
	st := s.getState(key{provider, credential})
	st.mu.Lock()
	defer st.mu.Unlock()
	return s.Delay(st.attempts)
}

// Ready reports whether a live call is due. When it is not, remaining is
// the time left in the cooldown.
func (s *Scheduler) Ready(provider types.ProviderID, credential types.CredentialIdentity) (ready bool, remaining time.Duration) {
	st := s.getState(key{provider, credential})
	st.mu.Lock()
	defer st.mu.Unlock()
	now := s.now()
	if now.Before(st.nextAllowedAt) {
		return false, st.nextAllowedAt.Sub(now)
	}
	return true, 0
}

// RecordFailure increments the failure streak and schedules the next
// allowed attempt. Returns the delay applied.
func (s *Scheduler) RecordFailure(provider types.ProviderID, credential types.CredentialIdentity) time.Duration {
	st := s.getState(key{provider, credential})
	st.mu.Lock()
	defer st.mu.Unlock()

	st.attempts++
	delay := s.Delay(st.attempts)
	next := s.now().Add(delay)
	if next.After(st.nextAllowedAt) {
		st.nextAllowedAt = next
	}
	return delay
}

// RecordSuccess clears the failure streak from any state.
func (s *Scheduler) RecordSuccess(provider types.ProviderID, credential types.CredentialIdentity) {
	st := s.getState(key{provider, credential})
	st.mu.Lock()
	defer st.mu.Unlock()
	st.attempts = 0
	st.nextAllowedAt = time.Time{}
}

// Attempts returns the current failure streak length.
func (s *Scheduler) Attempts(provider types.ProviderID, credential types.CredentialIdentity) int {
	st := s.getState(key{provider, credential})
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.attempts
}
