package approval

import (
	"context"
	"time"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
)

// StatusPatch carries the extra columns a conditional status update sets.
type StatusPatch struct {
	ExecutedAt *time.Time
	ExecutedBy *string
}

type RequestFilter struct {
	Status     domain.RequestStatus
	ActionType domain.ActionType
	TargetID   string
}

type PolicyFilter struct {
	Network    domain.Network
	WalletRole domain.WalletRole
	ActiveOnly bool
}

// Store is the persistence contract for policies, requests and signatures.
// Implementations must make UpdateStatus a single atomic compare-and-set on
// the status column and back AppendSignature with a uniqueness constraint
// on (request_id, approver_id); the workflow's correctness under concurrent
// callers depends on both.
type Store interface {
	InsertRequest(ctx context.Context, req domain.ApprovalRequest) error
	// GetRequest returns domain.ErrNotFound when no such request exists.
	GetRequest(ctx context.Context, requestID string) (domain.ApprovalRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]domain.ApprovalRequest, error)
	// UpdateStatus flips status from -> to and applies patch in one
	// conditional write. The (from, to) pair must be legal per
	// domain.CanTransition; illegal pairs fail with InvalidStateError
	// before touching storage. ok=false means the request was not in
	// `from` at write time; the caller re-reads and reports the conflict.
	UpdateStatus(ctx context.Context, requestID string, from, to domain.RequestStatus, patch StatusPatch) (bool, error)
	// AppendSignature inserts sig and, when countApproval is true, bumps
	// current_approvals — both guarded on status=PENDING in the same
	// transaction. Returns the post-insert approval count. Fails with
	// DuplicateSignatureError on a second signature by the same approver
	// and RequestNotPendingError when the request left PENDING.
	AppendSignature(ctx context.Context, sig domain.ApprovalSignature, countApproval bool) (int, error)
	ListSignatures(ctx context.Context, requestID string) ([]domain.ApprovalSignature, error)

	UpsertPolicy(ctx context.Context, p domain.SigningPolicy) (domain.SigningPolicy, error)
	GetPolicy(ctx context.Context, policyID string) (domain.SigningPolicy, error)
	ListPolicies(ctx context.Context, filter PolicyFilter) ([]domain.SigningPolicy, error)
	SetPolicyActive(ctx context.Context, policyID string, active bool) error
}
