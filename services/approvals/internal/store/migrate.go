package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS signing_policies (
  policy_id          text PRIMARY KEY,
  name               text NOT NULL CHECK (length(trim(name)) > 0),
  network            text NOT NULL CHECK (network IN ('mainnet','testnet','devnet')),
  wallet_roles       text[] NOT NULL CHECK (cardinality(wallet_roles) > 0),
  allowed_tx_types   text[] NOT NULL CHECK (cardinality(allowed_tx_types) > 0),
  max_amount_xrp     numeric CHECK (max_amount_xrp IS NULL OR max_amount_xrp > 0),
  max_daily_txs      integer CHECK (max_daily_txs IS NULL OR max_daily_txs > 0),
  rate_limit_per_min integer NOT NULL CHECK (rate_limit_per_min > 0),
  requires_multi_sign boolean NOT NULL DEFAULT false,
  min_signers        integer NOT NULL DEFAULT 0 CHECK (NOT requires_multi_sign OR min_signers >= 2),
  active             boolean NOT NULL DEFAULT true,
  created_at         timestamptz NOT NULL DEFAULT now(),
  updated_at         timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_signing_policies_scope
  ON signing_policies(network) WHERE active`,

	`CREATE TABLE IF NOT EXISTS approval_requests (
  request_id            text PRIMARY KEY,
  action_type           text NOT NULL,
  target_type           text NOT NULL,
  target_id             text NOT NULL,
  payload               jsonb NOT NULL,
  payload_sha256        text NOT NULL,
  requested_by          text NOT NULL,
  requested_by_name     text NOT NULL,
  requested_by_role     text NOT NULL,
  policy_id             text REFERENCES signing_policies(policy_id),
  policy_max_amount_xrp numeric,
  policy_min_signers    integer NOT NULL DEFAULT 0,
  required_approvers    integer NOT NULL CHECK (required_approvers >= 1),
  current_approvals     integer NOT NULL DEFAULT 0 CHECK (current_approvals >= 0 AND current_approvals <= required_approvers),
  status                text NOT NULL CHECK (status IN ('PENDING','APPROVED','REJECTED','EXPIRED','EXECUTED','CANCELLED')),
  requested_at          timestamptz NOT NULL,
  expires_at            timestamptz NOT NULL CHECK (expires_at > requested_at),
  executed_at           timestamptz,
  executed_by           text
)`,
	`CREATE INDEX IF NOT EXISTS idx_approval_requests_status
  ON approval_requests(status, requested_at)`,

	`CREATE TABLE IF NOT EXISTS approval_signatures (
  signature_id  text PRIMARY KEY,
  request_id    text NOT NULL REFERENCES approval_requests(request_id),
  approver_id   text NOT NULL,
  approver_name text NOT NULL,
  approver_role text NOT NULL,
  approved      boolean NOT NULL,
  notes         text NOT NULL DEFAULT '',
  signed_at     timestamptz NOT NULL,
  UNIQUE (request_id, approver_id)
)`,
}

// Migrate applies the schema. Statements are idempotent; there is no
// version table because the service owns these three tables outright.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
