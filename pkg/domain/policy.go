package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SigningPolicy constrains which transactions a (network, wallet role)
// combination may sign, and when multi-signature approval is required.
// Policies are soft-deleted via Active=false; historical approval records
// keep referencing them by id.
type SigningPolicy struct {
	PolicyID          string           `json:"policy_id"`
	Name              string           `json:"name"`
	Network           Network          `json:"network"`
	WalletRoles       []WalletRole     `json:"wallet_roles"`
	AllowedTxTypes    []TxType         `json:"allowed_tx_types"`
	MaxAmountXRP      *decimal.Decimal `json:"max_amount_xrp,omitempty"`
	MaxDailyTxs       *int             `json:"max_daily_txs,omitempty"`
	RateLimitPerMin   int              `json:"rate_limit_per_min"`
	RequiresMultiSign bool             `json:"requires_multi_sign"`
	MinSigners        int              `json:"min_signers"`
	Active            bool             `json:"active"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (p *SigningPolicy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("name", "must not be empty")
	}
	if !p.Network.Valid() {
		return Invalid("network", "unknown network "+string(p.Network))
	}
	if len(p.WalletRoles) == 0 {
		return Invalid("wallet_roles", "must not be empty")
	}
	for _, r := range p.WalletRoles {
		if !r.Valid() {
			return Invalid("wallet_roles", "unknown role "+string(r))
		}
	}
	if len(p.AllowedTxTypes) == 0 {
		return Invalid("allowed_tx_types", "must not be empty")
	}
	for _, t := range p.AllowedTxTypes {
		if !t.Valid() {
			return Invalid("allowed_tx_types", "unknown tx type "+string(t))
		}
	}
	if p.MaxAmountXRP != nil && !p.MaxAmountXRP.IsPositive() {
		return Invalid("max_amount_xrp", "must be positive when set")
	}
	if p.MaxDailyTxs != nil && *p.MaxDailyTxs <= 0 {
		return Invalid("max_daily_txs", "must be positive when set")
	}
	if p.RateLimitPerMin <= 0 {
		return Invalid("rate_limit_per_min", "must be a positive integer")
	}
	if p.RequiresMultiSign && p.MinSigners < 2 {
		return Invalid("min_signers", "must be >= 2 when multi-sign is required")
	}
	return nil
}

// AppliesTo reports whether the policy covers the given role.
func (p *SigningPolicy) AppliesTo(role WalletRole) bool {
	for _, r := range p.WalletRoles {
		if r == role {
			return true
		}
	}
	return false
}

// AllowsTxType reports whether the policy permits the given transaction type.
func (p *SigningPolicy) AllowsTxType(t TxType) bool {
	for _, allowed := range p.AllowedTxTypes {
		if allowed == t {
			return true
		}
	}
	return false
}
