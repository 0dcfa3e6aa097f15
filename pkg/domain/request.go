package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalRequest is an append-only audit record of a proposed operation
// awaiting quorum. The payload is write-once; requestor identity and the
// evaluated policy limits are value snapshots, never live references.
type ApprovalRequest struct {
	RequestID         string           `json:"request_id"`
	ActionType        ActionType       `json:"action_type"`
	TargetType        string           `json:"target_type"`
	TargetID          string           `json:"target_id"`
	Payload           json.RawMessage  `json:"payload"`
	PayloadSHA256     string           `json:"payload_sha256"`
	RequestedBy       string           `json:"requested_by"`
	RequestedByName   string           `json:"requested_by_name"`
	RequestedByRole   WalletRole       `json:"requested_by_role"`
	PolicyID          string           `json:"policy_id,omitempty"`
	PolicyMaxAmount   *decimal.Decimal `json:"policy_max_amount_xrp,omitempty"`
	PolicyMinSigners  int              `json:"policy_min_signers,omitempty"`
	RequiredApprovers int              `json:"required_approvers"`
	CurrentApprovals  int              `json:"current_approvals"`
	Status            RequestStatus    `json:"status"`
	RequestedAt       time.Time        `json:"requested_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
	ExecutedAt        *time.Time       `json:"executed_at,omitempty"`
	ExecutedBy        *string          `json:"executed_by,omitempty"`
}

// Expired reports whether the request is past its deadline at the given
// instant. Expiry is advisory until persisted by a lazy read-time check.
func (r *ApprovalRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ApprovalSignature is one approver's decision on a request. A rejection is
// also a signature; it counts against approval, not toward quorum. Records
// are immutable once created.
type ApprovalSignature struct {
	SignatureID  string     `json:"signature_id"`
	RequestID    string     `json:"request_id"`
	ApproverID   string     `json:"approver_id"`
	ApproverName string     `json:"approver_name"`
	ApproverRole WalletRole `json:"approver_role"`
	Approved     bool       `json:"approved"`
	Notes        string     `json:"notes,omitempty"`
	SignedAt     time.Time  `json:"signed_at"`
}
