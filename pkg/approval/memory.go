package approval

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
)

type sigKey struct {
	requestID  string
	approverID string
}

// InMemoryStore implements Store for tests and dev mode. It honors the same
// atomicity contract as the Postgres store: status flips are
// compare-and-set and signature appends are unique per
// (request_id, approver_id), all under one mutex.
type InMemoryStore struct {
	mu sync.Mutex

	policies   map[string]domain.SigningPolicy
	requests   map[string]domain.ApprovalRequest
	signatures map[string][]domain.ApprovalSignature
	signed     map[sigKey]bool

	// Now feeds created/updated timestamps; tests may override.
	Now func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies:   make(map[string]domain.SigningPolicy),
		requests:   make(map[string]domain.ApprovalRequest),
		signatures: make(map[string][]domain.ApprovalSignature),
		signed:     make(map[sigKey]bool),
		Now:        time.Now,
	}
}

func (s *InMemoryStore) InsertRequest(_ context.Context, req domain.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.RequestID] = req
	return nil
}

func (s *InMemoryStore) GetRequest(_ context.Context, requestID string) (domain.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return domain.ApprovalRequest{}, domain.ErrNotFound
	}
	return req, nil
}

func (s *InMemoryStore) ListRequests(_ context.Context, filter RequestFilter) ([]domain.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.ApprovalRequest{}
	for _, req := range s.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.ActionType != "" && req.ActionType != filter.ActionType {
			continue
		}
		if filter.TargetID != "" && req.TargetID != filter.TargetID {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].RequestID < out[j].RequestID
	})
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, requestID string, from, to domain.RequestStatus, patch StatusPatch) (bool, error) {
	if err := domain.CheckTransition(requestID, from, to); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	if patch.ExecutedAt != nil {
		req.ExecutedAt = patch.ExecutedAt
	}
	if patch.ExecutedBy != nil {
		req.ExecutedBy = patch.ExecutedBy
	}
	s.requests[requestID] = req
	return true, nil
}

func (s *InMemoryStore) AppendSignature(_ context.Context, sig domain.ApprovalSignature, countApproval bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sigKey{requestID: sig.RequestID, approverID: sig.ApproverID}
	if s.signed[key] {
		return 0, &domain.DuplicateSignatureError{RequestID: sig.RequestID, ApproverID: sig.ApproverID}
	}
	req, ok := s.requests[sig.RequestID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if req.Status != domain.StatusPending {
		return 0, &domain.RequestNotPendingError{RequestID: sig.RequestID, Status: req.Status}
	}
	if countApproval && req.CurrentApprovals >= req.RequiredApprovers {
		// Quorum already reached; the APPROVED flip just hasn't landed.
		// Counting further approvals would break current<=required.
		return 0, &domain.RequestNotPendingError{RequestID: sig.RequestID, Status: domain.StatusApproved}
	}

	s.signed[key] = true
	s.signatures[sig.RequestID] = append(s.signatures[sig.RequestID], sig)
	if countApproval {
		req.CurrentApprovals++
		s.requests[sig.RequestID] = req
	}
	return req.CurrentApprovals, nil
}

func (s *InMemoryStore) ListSignatures(_ context.Context, requestID string) ([]domain.ApprovalSignature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sigs := s.signatures[requestID]
	out := make([]domain.ApprovalSignature, len(sigs))
	copy(out, sigs)
	return out, nil
}

func (s *InMemoryStore) UpsertPolicy(_ context.Context, p domain.SigningPolicy) (domain.SigningPolicy, error) {
	if err := p.Validate(); err != nil {
		return domain.SigningPolicy{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now().UTC()
	if p.PolicyID == "" {
		p.PolicyID = "pol_" + uuid.NewString()
		p.CreatedAt = now
	} else if existing, ok := s.policies[p.PolicyID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.policies[p.PolicyID] = p
	return p, nil
}

func (s *InMemoryStore) GetPolicy(_ context.Context, policyID string) (domain.SigningPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[policyID]
	if !ok {
		return domain.SigningPolicy{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) ListPolicies(_ context.Context, filter PolicyFilter) ([]domain.SigningPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.SigningPolicy{}
	for _, p := range s.policies {
		if filter.ActiveOnly && !p.Active {
			continue
		}
		if filter.Network != "" && p.Network != filter.Network {
			continue
		}
		if filter.WalletRole != "" && !p.AppliesTo(filter.WalletRole) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PolicyID < out[j].PolicyID })
	return out, nil
}

func (s *InMemoryStore) SetPolicyActive(_ context.Context, policyID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[policyID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = active
	p.UpdatedAt = s.Now().UTC()
	s.policies[policyID] = p
	return nil
}
