package approval

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/canonhash"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/notify"
)

// Identity is the caller's asserted identity from a verified session. Name
// and role are snapshotted onto the records they touch; the audit trail
// stays stable even if role assignments change later.
type Identity struct {
	UserID      string            `json:"user_id"`
	DisplayName string            `json:"display_name"`
	Role        domain.WalletRole `json:"role"`
}

func (id Identity) validate(field string) error {
	if strings.TrimSpace(id.UserID) == "" {
		return domain.Invalid(field+".user_id", "must not be empty")
	}
	if !id.Role.Valid() {
		return domain.Invalid(field+".role", "unknown role "+string(id.Role))
	}
	return nil
}

// Ledger owns the approval-request lifecycle up to the execution gate:
// creation, reads with lazy expiry, and signature collection. Constructed
// by the composition root and handed to callers; holds no global state.
type Ledger struct {
	store  Store
	events notify.Emitter

	// Now is the clock used for timestamps and expiry checks. Tests
	// override it to simulate elapsed time.
	Now func() time.Time
}

func NewLedger(store Store, events notify.Emitter) *Ledger {
	if events == nil {
		events = notify.NopEmitter{}
	}
	return &Ledger{store: store, events: events, Now: time.Now}
}

type CreateParams struct {
	ActionType domain.ActionType `json:"action_type"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Payload    json.RawMessage   `json:"payload"`
	Requestor  Identity          `json:"requestor"`

	// Snapshot of the policy evaluation that demanded multi-sign. Values
	// are copied here so the audit record survives later policy edits.
	PolicyID         string           `json:"policy_id,omitempty"`
	PolicyMaxAmount  *decimal.Decimal `json:"policy_max_amount_xrp,omitempty"`
	PolicyMinSigners int              `json:"policy_min_signers,omitempty"`

	RequiredApprovers int     `json:"required_approvers"`
	ExpiresInHours    float64 `json:"expires_in_hours"`
}

// CreateRequest opens a PENDING approval request. The payload digest is
// computed once here; the payload itself is write-once from this point on.
func (l *Ledger) CreateRequest(ctx context.Context, params CreateParams) (*domain.ApprovalRequest, error) {
	if !params.ActionType.Valid() {
		return nil, domain.Invalid("action_type", "unknown action type "+string(params.ActionType))
	}
	if strings.TrimSpace(params.TargetID) == "" {
		return nil, domain.Invalid("target_id", "must not be empty")
	}
	if len(params.Payload) == 0 {
		return nil, domain.Invalid("payload", "must not be empty")
	}
	if err := params.Requestor.validate("requestor"); err != nil {
		return nil, err
	}
	if params.RequiredApprovers == 0 && params.PolicyID != "" {
		params.RequiredApprovers = params.PolicyMinSigners
	}
	if params.RequiredApprovers < 1 {
		return nil, domain.Invalid("required_approvers", "must be >= 1")
	}
	if params.ExpiresInHours <= 0 {
		return nil, domain.Invalid("expires_in_hours", "must be > 0")
	}

	digest, err := canonhash.SumRaw(params.Payload)
	if err != nil {
		return nil, domain.Invalid("payload", "not valid JSON: "+err.Error())
	}

	now := l.Now().UTC()
	req := domain.ApprovalRequest{
		RequestID:         "apr_" + uuid.NewString(),
		ActionType:        params.ActionType,
		TargetType:        params.TargetType,
		TargetID:          params.TargetID,
		Payload:           params.Payload,
		PayloadSHA256:     digest,
		RequestedBy:       params.Requestor.UserID,
		RequestedByName:   norm.NFC.String(params.Requestor.DisplayName),
		RequestedByRole:   params.Requestor.Role,
		PolicyID:          params.PolicyID,
		PolicyMaxAmount:   params.PolicyMaxAmount,
		PolicyMinSigners:  params.PolicyMinSigners,
		RequiredApprovers: params.RequiredApprovers,
		CurrentApprovals:  0,
		Status:            domain.StatusPending,
		RequestedAt:       now,
		ExpiresAt:         now.Add(time.Duration(params.ExpiresInHours * float64(time.Hour))),
	}
	if err := l.store.InsertRequest(ctx, req); err != nil {
		return nil, err
	}

	l.emit(notify.EventRequestCreated, req, map[string]any{
		"action_type":        string(req.ActionType),
		"required_approvers": req.RequiredApprovers,
	})
	return &req, nil
}

// GetRequest reads a request, persisting expiry on first observation.
func (l *Ledger) GetRequest(ctx context.Context, requestID string) (*domain.ApprovalRequest, error) {
	req, err := l.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	req = l.expireIfDue(ctx, req)
	return &req, nil
}

func (l *Ledger) ListRequests(ctx context.Context, filter RequestFilter) ([]domain.ApprovalRequest, error) {
	reqs, err := l.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		reqs[i] = l.expireIfDue(ctx, reqs[i])
	}
	return reqs, nil
}

func (l *Ledger) ListSignatures(ctx context.Context, requestID string) ([]domain.ApprovalSignature, error) {
	return l.store.ListSignatures(ctx, requestID)
}

type SignParams struct {
	RequestID string   `json:"request_id"`
	Approver  Identity `json:"approver"`
	Approved  bool     `json:"approved"`
	Notes     string   `json:"notes,omitempty"`
}

// Sign records one approver's decision and applies the transition rules:
// a rejection vetoes immediately, an approval that reaches quorum flips the
// request to APPROVED. The signature insert and the approval-counter bump
// are a single atomic store operation guarded on status=PENDING.
func (l *Ledger) Sign(ctx context.Context, params SignParams) (*domain.ApprovalRequest, error) {
	if err := params.Approver.validate("approver"); err != nil {
		return nil, err
	}

	req, err := l.store.GetRequest(ctx, params.RequestID)
	if err != nil {
		return nil, err
	}
	req = l.expireIfDue(ctx, req)

	if params.Approver.UserID == req.RequestedBy {
		return nil, &domain.SelfApprovalError{RequestID: req.RequestID, UserID: params.Approver.UserID}
	}
	if req.Status != domain.StatusPending {
		return nil, &domain.RequestNotPendingError{RequestID: req.RequestID, Status: req.Status}
	}

	now := l.Now().UTC()
	sig := domain.ApprovalSignature{
		SignatureID:  "sig_" + uuid.NewString(),
		RequestID:    req.RequestID,
		ApproverID:   params.Approver.UserID,
		ApproverName: norm.NFC.String(params.Approver.DisplayName),
		ApproverRole: params.Approver.Role,
		Approved:     params.Approved,
		Notes:        params.Notes,
		SignedAt:     now,
	}
	newCount, err := l.store.AppendSignature(ctx, sig, params.Approved)
	if err != nil {
		return nil, err
	}

	l.emit(notify.EventRequestSigned, req, map[string]any{
		"approver_id": sig.ApproverID,
		"approved":    sig.Approved,
	})

	if !params.Approved {
		// Single reject vetoes the whole request.
		ok, err := l.store.UpdateStatus(ctx, req.RequestID, domain.StatusPending, domain.StatusRejected, StatusPatch{})
		if err != nil {
			return nil, err
		}
		if ok {
			req.Status = domain.StatusRejected
			l.emit(notify.EventRequestRejected, req, map[string]any{"rejected_by": sig.ApproverID})
		}
	} else if newCount >= req.RequiredApprovers {
		ok, err := l.store.UpdateStatus(ctx, req.RequestID, domain.StatusPending, domain.StatusApproved, StatusPatch{})
		if err != nil {
			return nil, err
		}
		if ok {
			req.Status = domain.StatusApproved
			l.emit(notify.EventRequestApproved, req, map[string]any{"current_approvals": newCount})
		}
	}

	updated, err := l.store.GetRequest(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// expireIfDue is the lazy expiry check: computed on every read or sign,
// persisted on first observation via the same conditional write as any
// other transition.
func (l *Ledger) expireIfDue(ctx context.Context, req domain.ApprovalRequest) domain.ApprovalRequest {
	if req.Status != domain.StatusPending && req.Status != domain.StatusApproved {
		return req
	}
	if !req.Expired(l.Now().UTC()) {
		return req
	}
	ok, err := l.store.UpdateStatus(ctx, req.RequestID, req.Status, domain.StatusExpired, StatusPatch{})
	if err != nil {
		return req
	}
	if ok {
		req.Status = domain.StatusExpired
		l.emit(notify.EventRequestExpired, req, nil)
	} else if refreshed, err := l.store.GetRequest(ctx, req.RequestID); err == nil {
		req = refreshed
	}
	return req
}

func (l *Ledger) emit(eventType string, req domain.ApprovalRequest, data map[string]any) {
	l.events.Emit(notify.Event{
		EventID:   notify.NewEventID(),
		Type:      eventType,
		RequestID: req.RequestID,
		Status:    string(req.Status),
		At:        l.Now().UTC(),
		Data:      data,
	})
}
