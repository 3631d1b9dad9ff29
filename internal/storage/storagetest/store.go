// Package storagetest provides an in-memory ledger and job store with the
// same transactional semantics as the Postgres storage.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/google/uuid"
)

// Transaction is an audit row
type Transaction struct {
	UserID string
	Delta  int
	Reason string
	JobID  string
	Meta   map[string]string
}

// Store is an in-memory store safe for concurrent use
type Store struct {
	mu           sync.Mutex
	policy       domain.ExpiryPolicy
	profiles     map[string]*domain.Profile
	jobs         map[string]*domain.Job
	order        []string
	transactions []Transaction
	failures     map[string]error
	seq          int

	// Now is the store's clock
	Now func() time.Time
}

// New creates an empty store
func New(policy domain.ExpiryPolicy) *Store {
	if policy == "" {
		policy = domain.ExpiryPolicyNone
	}
	return &Store{
		policy:   policy,
		profiles: make(map[string]*domain.Profile),
		jobs:     make(map[string]*domain.Job),
		failures: make(map[string]error),
		Now:      time.Now,
	}
}

// FailOn makes every later call to method return err until cleared with a nil err
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// SetBalance creates or overwrites a profile balance
func (s *Store) SetBalance(userID string, credits int, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile(userID)
	p.Credits = credits
	p.CreditsExpiresAt = expiresAt
}

// Balance returns the stored credits for userID
func (s *Store) Balance(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return p.Credits
	}
	return 0
}

// Job returns a copy of the job regardless of owner
func (s *Store) Job(jobID string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return *j, true
}

// Transactions returns the audit trail in insertion order
func (s *Store) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transaction(nil), s.transactions...)
}

func (s *Store) fail(method string) error {
	return s.failures[method]
}

func (s *Store) profile(userID string) *domain.Profile {
	p, ok := s.profiles[userID]
	if !ok {
		p = &domain.Profile{UserID: userID, CreatedAt: s.Now()}
		s.profiles[userID] = p
	}
	return p
}

func (s *Store) effective(p *domain.Profile) int {
	if s.policy == domain.ExpiryPolicyZero && domain.Expired(p.CreditsExpiresAt, s.Now()) {
		return 0
	}
	return p.Credits
}

func (s *Store) record(userID string, delta int, reason, jobID string, meta map[string]string) {
	s.transactions = append(s.transactions, Transaction{
		UserID: userID, Delta: delta, Reason: reason, JobID: jobID, Meta: meta,
	})
}

// GetProfile returns the profile, creating it on first access
func (s *Store) GetProfile(_ context.Context, userID, email string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetProfile"); err != nil {
		return nil, err
	}
	p := s.profile(userID)
	if email != "" {
		p.Email = email
	}
	out := *p
	out.Credits = s.effective(p)
	return &out, nil
}

// ReserveAndCreateJob debits cost and creates a queued job atomically
func (s *Store) ReserveAndCreateJob(_ context.Context, params domain.JobParams, cost int) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ReserveAndCreateJob"); err != nil {
		return nil, err
	}
	p, ok := s.profiles[params.UserID]
	if !ok || s.effective(p) < cost {
		return nil, domain.ErrInsufficientCredits
	}
	p.Credits -= cost

	s.seq++
	// created_at must be strictly increasing for newest-first ordering
	created := s.Now().Add(time.Duration(s.seq) * time.Nanosecond)
	job := &domain.Job{
		ID:          uuid.NewString(),
		UserID:      params.UserID,
		Prompt:      params.Prompt,
		AspectRatio: params.AspectRatio,
		ImageSize:   params.ImageSize,
		Model:       params.Model,
		Cost:        cost,
		Status:      domain.JobStatusQueued,
		CreatedAt:   created,
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.record(params.UserID, -cost, domain.ReasonGenerationReserve, job.ID, nil)

	out := *job
	return &out, nil
}

// Refund credits amount to the job owner
func (s *Store) Refund(_ context.Context, jobID string, amount int, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Refund"); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidInput
	}
	if reason == "" {
		reason = domain.ReasonManualRefund
	}
	j, ok := s.jobs[jobID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	p := s.profile(j.UserID)
	p.Credits += amount
	s.record(j.UserID, amount, reason, jobID, nil)
	return p.Credits, nil
}

// Recharge adds tier credits and extends expiry
func (s *Store) Recharge(_ context.Context, userID string, tier domain.Tier) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Recharge"); err != nil {
		return nil, err
	}
	p := s.profile(userID)
	base := s.effective(p)
	if forfeited := p.Credits - base; forfeited > 0 {
		s.record(userID, -forfeited, domain.ReasonExpiry, "", nil)
	}
	p.Credits = base + tier.Credits
	p.CreditsExpiresAt = domain.ExtendExpiry(p.CreditsExpiresAt, tier.Validity, s.Now())
	s.record(userID, tier.Credits, domain.ReasonRecharge, "", map[string]string{"tier": tier.Key})
	out := *p
	return &out, nil
}

// ExpireBalances zeroes positive balances whose expiry passed
func (s *Store) ExpireBalances(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ExpireBalances"); err != nil {
		return 0, err
	}
	var n int64
	now := s.Now()
	for _, p := range s.profiles {
		if p.Credits > 0 && domain.Expired(p.CreditsExpiresAt, now) {
			s.record(p.UserID, -p.Credits, domain.ReasonExpiry, "", nil)
			p.Credits = 0
			n++
		}
	}
	return n, nil
}

// GetJob returns a job owned by userID
func (s *Store) GetJob(_ context.Context, userID, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetJob"); err != nil {
		return nil, err
	}
	j, ok := s.jobs[jobID]
	if !ok || j.UserID != userID {
		return nil, domain.ErrNotFound
	}
	out := *j
	return &out, nil
}

// ListJobs returns the user's jobs newest first
func (s *Store) ListJobs(_ context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListJobs"); err != nil {
		return nil, err
	}
	owned := []domain.Job{}
	for _, id := range s.order {
		if j, ok := s.jobs[id]; ok && j.UserID == userID {
			owned = append(owned, *j)
		}
	}
	sort.SliceStable(owned, func(a, b int) bool { return owned[a].CreatedAt.After(owned[b].CreatedAt) })
	if offset >= len(owned) {
		return []domain.Job{}, nil
	}
	owned = owned[offset:]
	if limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, nil
}

// SetProcessing claims a queued job
func (s *Store) SetProcessing(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetProcessing"); err != nil {
		return false, err
	}
	j, ok := s.jobs[jobID]
	if !ok || j.Status != domain.JobStatusQueued {
		return false, nil
	}
	now := s.Now()
	j.Status = domain.JobStatusProcessing
	j.StartedAt = &now
	return true, nil
}

// SetSucceeded records the artifact path on a processing job
func (s *Store) SetSucceeded(_ context.Context, jobID, artifactPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetSucceeded"); err != nil {
		return err
	}
	j, ok := s.jobs[jobID]
	if !ok || j.Status != domain.JobStatusProcessing {
		return domain.ErrInvalidTransition
	}
	now := s.Now()
	j.Status = domain.JobStatusSucceeded
	j.ResultImagePath = &artifactPath
	j.Error = nil
	j.CompletedAt = &now
	return nil
}

// SetFailedAndRefund fails a processing job and refunds its owner atomically
func (s *Store) SetFailedAndRefund(_ context.Context, jobID, errorMessage string, refundAmount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetFailedAndRefund"); err != nil {
		return err
	}
	j, ok := s.jobs[jobID]
	if !ok || j.Status != domain.JobStatusProcessing {
		return domain.ErrInvalidTransition
	}
	now := s.Now()
	j.Status = domain.JobStatusFailed
	j.Error = &errorMessage
	j.ResultImagePath = nil
	j.CompletedAt = &now
	if refundAmount > 0 {
		s.profile(j.UserID).Credits += refundAmount
		s.record(j.UserID, refundAmount, domain.ReasonGenerationRefund, jobID, nil)
	}
	return nil
}

// DeleteJob removes a job owned by userID
func (s *Store) DeleteJob(_ context.Context, userID, jobID string) (domain.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteJob"); err != nil {
		return domain.DeleteResult{}, err
	}
	j, ok := s.jobs[jobID]
	if !ok || j.UserID != userID {
		return domain.DeleteResult{}, nil
	}
	delete(s.jobs, jobID)
	result := domain.DeleteResult{Deleted: true}
	if j.ResultImagePath != nil {
		result.ArtifactPath = *j.ResultImagePath
	}
	return result, nil
}
