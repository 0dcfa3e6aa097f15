package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/approval"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
)

const uniqueViolation = "23505"

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) InsertRequest(ctx context.Context, req domain.ApprovalRequest) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO approval_requests(
  request_id,action_type,target_type,target_id,payload,payload_sha256,
  requested_by,requested_by_name,requested_by_role,
  policy_id,policy_max_amount_xrp,policy_min_signers,
  required_approvers,current_approvals,status,requested_at,expires_at
)
VALUES($1,$2,$3,$4,$5::jsonb,$6,$7,$8,$9,NULLIF($10,''),$11,$12,$13,$14,$15,$16,$17)
`, req.RequestID, req.ActionType, req.TargetType, req.TargetID, string(req.Payload), req.PayloadSHA256,
		req.RequestedBy, req.RequestedByName, req.RequestedByRole,
		req.PolicyID, decimalText(req.PolicyMaxAmount), req.PolicyMinSigners,
		req.RequiredApprovers, req.CurrentApprovals, req.Status, req.RequestedAt.UTC(), req.ExpiresAt.UTC())
	return err
}

const requestColumns = `
request_id,action_type,target_type,target_id,payload,payload_sha256,
requested_by,requested_by_name,requested_by_role,
COALESCE(policy_id,''),policy_max_amount_xrp::text,policy_min_signers,
required_approvers,current_approvals,status,requested_at,expires_at,executed_at,executed_by
`

func (s *Store) GetRequest(ctx context.Context, requestID string) (domain.ApprovalRequest, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE request_id=$1`, requestID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ApprovalRequest{}, domain.ErrNotFound
		}
		return domain.ApprovalRequest{}, err
	}
	return req, nil
}

func (s *Store) ListRequests(ctx context.Context, filter approval.RequestFilter) ([]domain.ApprovalRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM approval_requests WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		q += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if filter.ActionType != "" {
		args = append(args, filter.ActionType)
		q += fmt.Sprintf(` AND action_type=$%d`, len(args))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		q += fmt.Sprintf(` AND target_id=$%d`, len(args))
	}
	q += ` ORDER BY requested_at ASC, request_id ASC`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// UpdateStatus is the one conditional write every transition rides:
// `WHERE status=<expected>` closes the race window, rows-affected reports
// whether this caller won.
func (s *Store) UpdateStatus(ctx context.Context, requestID string, from, to domain.RequestStatus, patch approval.StatusPatch) (bool, error) {
	if err := domain.CheckTransition(requestID, from, to); err != nil {
		return false, err
	}
	tag, err := s.DB.Exec(ctx, `
UPDATE approval_requests
SET status=$3,
    executed_at=COALESCE($4,executed_at),
    executed_by=COALESCE($5,executed_by)
WHERE request_id=$1 AND status=$2
`, requestID, from, to, patch.ExecutedAt, patch.ExecutedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AppendSignature inserts the signature and bumps the approval counter in
// one transaction. The UNIQUE(request_id,approver_id) constraint rejects
// duplicates atomically; the counter update is guarded on status=PENDING so
// a late signature can never count against a settled request.
func (s *Store) AppendSignature(ctx context.Context, sig domain.ApprovalSignature, countApproval bool) (int, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO approval_signatures(signature_id,request_id,approver_id,approver_name,approver_role,approved,notes,signed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)
`, sig.SignatureID, sig.RequestID, sig.ApproverID, sig.ApproverName, sig.ApproverRole, sig.Approved, sig.Notes, sig.SignedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, &domain.DuplicateSignatureError{RequestID: sig.RequestID, ApproverID: sig.ApproverID}
		}
		return 0, err
	}

	var count int
	if countApproval {
		// The counter guard closes the window between a quorum-reaching
		// bump and its PENDING->APPROVED flip: a racing approval must not
		// push current_approvals past required_approvers.
		err = tx.QueryRow(ctx, `
UPDATE approval_requests
SET current_approvals=current_approvals+1
WHERE request_id=$1 AND status=$2 AND current_approvals < required_approvers
RETURNING current_approvals
`, sig.RequestID, domain.StatusPending).Scan(&count)
	} else {
		var status domain.RequestStatus
		err = tx.QueryRow(ctx, `
SELECT current_approvals,status FROM approval_requests WHERE request_id=$1 FOR UPDATE
`, sig.RequestID).Scan(&count, &status)
		if err == nil && status != domain.StatusPending {
			return 0, &domain.RequestNotPendingError{RequestID: sig.RequestID, Status: status}
		}
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.notPending(ctx, sig.RequestID)
		}
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) notPending(ctx context.Context, requestID string) error {
	var status domain.RequestStatus
	var current, required int
	err := s.DB.QueryRow(ctx, `
SELECT status,current_approvals,required_approvers FROM approval_requests WHERE request_id=$1
`, requestID).Scan(&status, &current, &required)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if status == domain.StatusPending && current >= required {
		// Quorum reached but the APPROVED flip is still in flight.
		status = domain.StatusApproved
	}
	return &domain.RequestNotPendingError{RequestID: requestID, Status: status}
}

func (s *Store) ListSignatures(ctx context.Context, requestID string) ([]domain.ApprovalSignature, error) {
	rows, err := s.DB.Query(ctx, `
SELECT signature_id,request_id,approver_id,approver_name,approver_role,approved,notes,signed_at
FROM approval_signatures
WHERE request_id=$1
ORDER BY signed_at ASC, signature_id ASC
`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ApprovalSignature
	for rows.Next() {
		var sig domain.ApprovalSignature
		if err := rows.Scan(&sig.SignatureID, &sig.RequestID, &sig.ApproverID, &sig.ApproverName, &sig.ApproverRole, &sig.Approved, &sig.Notes, &sig.SignedAt); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *Store) UpsertPolicy(ctx context.Context, p domain.SigningPolicy) (domain.SigningPolicy, error) {
	if err := p.Validate(); err != nil {
		return domain.SigningPolicy{}, err
	}
	if p.PolicyID == "" {
		p.PolicyID = "pol_" + uuid.NewString()
	}
	_, err := s.DB.Exec(ctx, `
INSERT INTO signing_policies(
  policy_id,name,network,wallet_roles,allowed_tx_types,
  max_amount_xrp,max_daily_txs,rate_limit_per_min,
  requires_multi_sign,min_signers,active
)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (policy_id) DO UPDATE SET
  name=EXCLUDED.name,
  network=EXCLUDED.network,
  wallet_roles=EXCLUDED.wallet_roles,
  allowed_tx_types=EXCLUDED.allowed_tx_types,
  max_amount_xrp=EXCLUDED.max_amount_xrp,
  max_daily_txs=EXCLUDED.max_daily_txs,
  rate_limit_per_min=EXCLUDED.rate_limit_per_min,
  requires_multi_sign=EXCLUDED.requires_multi_sign,
  min_signers=EXCLUDED.min_signers,
  active=EXCLUDED.active,
  updated_at=now()
`, p.PolicyID, p.Name, p.Network, rolesToText(p.WalletRoles), txTypesToText(p.AllowedTxTypes),
		decimalText(p.MaxAmountXRP), p.MaxDailyTxs, p.RateLimitPerMin,
		p.RequiresMultiSign, p.MinSigners, p.Active)
	if err != nil {
		return domain.SigningPolicy{}, err
	}
	return s.GetPolicy(ctx, p.PolicyID)
}

const policyColumns = `
policy_id,name,network,wallet_roles,allowed_tx_types,
max_amount_xrp::text,max_daily_txs,rate_limit_per_min,
requires_multi_sign,min_signers,active,created_at,updated_at
`

func (s *Store) GetPolicy(ctx context.Context, policyID string) (domain.SigningPolicy, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+policyColumns+` FROM signing_policies WHERE policy_id=$1`, policyID)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SigningPolicy{}, domain.ErrNotFound
		}
		return domain.SigningPolicy{}, err
	}
	return p, nil
}

func (s *Store) ListPolicies(ctx context.Context, filter approval.PolicyFilter) ([]domain.SigningPolicy, error) {
	q := `SELECT ` + policyColumns + ` FROM signing_policies WHERE 1=1`
	args := []any{}
	if filter.ActiveOnly {
		q += ` AND active`
	}
	if filter.Network != "" {
		args = append(args, filter.Network)
		q += fmt.Sprintf(` AND network=$%d`, len(args))
	}
	if filter.WalletRole != "" {
		args = append(args, string(filter.WalletRole))
		q += fmt.Sprintf(` AND $%d = ANY(wallet_roles)`, len(args))
	}
	q += ` ORDER BY policy_id ASC`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SigningPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SetPolicyActive(ctx context.Context, policyID string, active bool) error {
	tag, err := s.DB.Exec(ctx, `UPDATE signing_policies SET active=$2, updated_at=now() WHERE policy_id=$1`, policyID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRequest(row rowScanner) (domain.ApprovalRequest, error) {
	var req domain.ApprovalRequest
	var payload []byte
	var policyMax *string
	var executedAt *time.Time
	var executedBy *string
	err := row.Scan(
		&req.RequestID, &req.ActionType, &req.TargetType, &req.TargetID, &payload, &req.PayloadSHA256,
		&req.RequestedBy, &req.RequestedByName, &req.RequestedByRole,
		&req.PolicyID, &policyMax, &req.PolicyMinSigners,
		&req.RequiredApprovers, &req.CurrentApprovals, &req.Status, &req.RequestedAt, &req.ExpiresAt, &executedAt, &executedBy,
	)
	if err != nil {
		return domain.ApprovalRequest{}, err
	}
	req.Payload = payload
	req.ExecutedAt = executedAt
	req.ExecutedBy = executedBy
	if policyMax != nil {
		amt, err := decimal.NewFromString(*policyMax)
		if err != nil {
			return domain.ApprovalRequest{}, err
		}
		req.PolicyMaxAmount = &amt
	}
	return req, nil
}

func scanPolicy(row rowScanner) (domain.SigningPolicy, error) {
	var p domain.SigningPolicy
	var roles, txTypes []string
	var maxAmount *string
	err := row.Scan(
		&p.PolicyID, &p.Name, &p.Network, &roles, &txTypes,
		&maxAmount, &p.MaxDailyTxs, &p.RateLimitPerMin,
		&p.RequiresMultiSign, &p.MinSigners, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.SigningPolicy{}, err
	}
	for _, r := range roles {
		p.WalletRoles = append(p.WalletRoles, domain.WalletRole(r))
	}
	for _, t := range txTypes {
		p.AllowedTxTypes = append(p.AllowedTxTypes, domain.TxType(t))
	}
	if maxAmount != nil {
		amt, err := decimal.NewFromString(*maxAmount)
		if err != nil {
			return domain.SigningPolicy{}, err
		}
		p.MaxAmountXRP = &amt
	}
	return p, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func rolesToText(roles []domain.WalletRole) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func txTypesToText(types []domain.TxType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
