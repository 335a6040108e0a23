package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arklim/media-admin/internal/core/domain"
	"github.com/arklim/media-admin/internal/repository"
)

type fakeAdminRepo struct {
	mu      sync.Mutex
	admins  map[string]domain.AdminIdentity
	findErr error
	// beforeUpdateSecret runs inside UpdateMFASecret before the guard is evaluated.
	beforeUpdateSecret func(admins map[string]domain.AdminIdentity)
}

func newFakeAdminRepo(admins ...domain.AdminIdentity) *fakeAdminRepo {
	repo := &fakeAdminRepo{admins: make(map[string]domain.AdminIdentity)}
	for _, admin := range admins {
		repo.admins[admin.Username] = admin
	}
	return repo
}

func (r *fakeAdminRepo) FindByUsername(_ context.Context, username string) (*domain.AdminIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findErr != nil {
		return nil, r.findErr
	}
	admin, ok := r.admins[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if admin.MFASecret != nil {
		secret := *admin.MFASecret
		admin.MFASecret = &secret
	}
	return &admin, nil
}

func (r *fakeAdminRepo) UpdateMFASecret(_ context.Context, username, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.beforeUpdateSecret != nil {
		r.beforeUpdateSecret(r.admins)
	}

	admin, ok := r.admins[username]
	if !ok || admin.HasMFASecret() {
		return repository.ErrConflict
	}
	admin.MFASecret = &secret
	admin.MFAEnabled = false
	r.admins[username] = admin
	return nil
}

func (r *fakeAdminRepo) SetMFAEnabled(_ context.Context, username string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, ok := r.admins[username]
	if !ok {
		return repository.ErrNotFound
	}
	admin.MFAEnabled = enabled
	r.admins[username] = admin
	return nil
}

func (r *fakeAdminRepo) get(username string) domain.AdminIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admins[username]
}

type fakeReplayStore struct {
	mu   sync.Mutex
	used map[string]time.Duration
	err  error
}

func newFakeReplayStore() *fakeReplayStore {
	return &fakeReplayStore{used: make(map[string]time.Duration)}
}

func (s *fakeReplayStore) MarkUsed(_ context.Context, scope, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, s.err
	}
	k := scope + ":" + key
	if _, ok := s.used[k]; ok {
		return false, nil
	}
	s.used[k] = ttl
	return true, nil
}

type fakeRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newFakeRateLimitStore() *fakeRateLimitStore {
	return &fakeRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *fakeRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if !at.Before(threshold) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *fakeRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	count := 0
	for _, at := range s.attempts[identifier] {
		if !at.Before(threshold) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (s *fakeRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *fakeRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	var inside []time.Time
	for _, at := range s.attempts[identifier] {
		if !at.Before(threshold) {
			inside = append(inside, at)
		}
	}
	if len(inside) == 0 {
		return time.Time{}, false, nil
	}
	sort.Slice(inside, func(i, j int) bool { return inside[i].Before(inside[j]) })
	return inside[0], true, nil
}

func (s *fakeRateLimitStore) Reset(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, identifier)
	return nil
}

func (s *fakeRateLimitStore) count(identifier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts[identifier])
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) add(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, name)
}

func (e *recordingEvents) PublishAdminLogin(_ context.Context, event domain.AdminLoginEvent) error {
	switch {
	case !event.Succeeded:
		e.add("login.failed:" + event.Reason)
	case event.MFARequired:
		e.add("login.mfa_required")
	default:
		e.add("login.succeeded")
	}
	return nil
}

func (e *recordingEvents) PublishMFAEnrolled(_ context.Context, event domain.MFAEnrolledEvent) error {
	e.add(fmt.Sprintf("mfa.enrolled:reused=%t", event.Reused))
	return nil
}

func (e *recordingEvents) PublishMFAEnabled(context.Context, domain.MFAEnabledEvent) error {
	e.add("mfa.enabled")
	return nil
}

func (e *recordingEvents) PublishMFAVerificationFailed(_ context.Context, event domain.MFAVerificationFailedEvent) error {
	e.add("mfa.failed:" + event.Reason)
	return nil
}

func (e *recordingEvents) has(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, event := range e.events {
		if event == name {
			return true
		}
	}
	return false
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: make(map[string]int)}
}

func (m *recordingMetrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[key]++
}

func (m *recordingMetrics) LoginAttempt(outcome string) { m.inc("login:" + outcome) }

func (m *recordingMetrics) MFAVerificationAttempt(outcome string) { m.inc("verify:" + outcome) }

func (m *recordingMetrics) MFAEnrolled(reused bool) { m.inc(fmt.Sprintf("enroll:%t", reused)) }

func (m *recordingMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[key]
}
