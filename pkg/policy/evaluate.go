package policy

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
)

type Outcome string

const (
	OutcomeAllow           Outcome = "ALLOW"
	OutcomeRequireMultiSig Outcome = "REQUIRE_MULTISIG"
	OutcomeDeny            Outcome = "DENY"
)

// Reason codes carried on DENY decisions.
const (
	ReasonNoPolicy        = "NO_POLICY_FOR_ROLE"
	ReasonTxTypeForbidden = "TX_TYPE_NOT_PERMITTED"
	ReasonAmountExceeded  = "AMOUNT_EXCEEDS_LIMIT"
	ReasonDailyLimit      = "DAILY_LIMIT_REACHED"
)

// Input is the proposed transaction context. Amount and DailyTxCount are
// optional; limits that cannot be checked without them are skipped.
type Input struct {
	Network      domain.Network
	WalletRole   domain.WalletRole
	TxType       domain.TxType
	Amount       *decimal.Decimal
	DailyTxCount *int
}

// Decision is the evaluator's verdict plus the snapshot of the limits that
// were evaluated, for the audit record.
type Decision struct {
	Outcome           Outcome          `json:"outcome"`
	Reason            string           `json:"reason,omitempty"`
	ReasonCode        string           `json:"reason_code,omitempty"`
	PolicyID          string           `json:"policy_id,omitempty"`
	RequiredApprovers int              `json:"required_approvers,omitempty"`
	RateLimitPerMin   int              `json:"rate_limit_per_min,omitempty"`
	MaxAmountXRP      *decimal.Decimal `json:"max_amount_xrp,omitempty"`
	MaxDailyTxs       *int             `json:"max_daily_txs,omitempty"`
}

// Evaluate selects the applicable signing policy for in and decides whether
// the transaction may be signed directly, needs multi-signature approval,
// or is denied. Pure function of (in, policies): no clock, no I/O.
func Evaluate(in Input, policies []domain.SigningPolicy) Decision {
	matched := make([]domain.SigningPolicy, 0, len(policies))
	for _, p := range policies {
		if !p.Active || p.Network != in.Network || !p.AppliesTo(in.WalletRole) {
			continue
		}
		matched = append(matched, p)
	}
	if len(matched) == 0 {
		return Decision{
			Outcome:    OutcomeDeny,
			ReasonCode: ReasonNoPolicy,
			Reason:     "no active policy for role on network",
		}
	}

	allowing := matched[:0]
	for _, p := range matched {
		if p.AllowsTxType(in.TxType) {
			allowing = append(allowing, p)
		}
	}
	if len(allowing) == 0 {
		return Decision{
			Outcome:    OutcomeDeny,
			ReasonCode: ReasonTxTypeForbidden,
			Reason:     "transaction type not permitted for role",
		}
	}

	selected := selectMostRestrictive(allowing)

	if in.Amount != nil && selected.MaxAmountXRP != nil && in.Amount.GreaterThan(*selected.MaxAmountXRP) {
		return Decision{
			Outcome:      OutcomeDeny,
			ReasonCode:   ReasonAmountExceeded,
			Reason:       "amount exceeds policy limit",
			PolicyID:     selected.PolicyID,
			MaxAmountXRP: selected.MaxAmountXRP,
		}
	}
	if in.DailyTxCount != nil && selected.MaxDailyTxs != nil && *in.DailyTxCount >= *selected.MaxDailyTxs {
		return Decision{
			Outcome:     OutcomeDeny,
			ReasonCode:  ReasonDailyLimit,
			Reason:      "daily transaction limit reached",
			PolicyID:    selected.PolicyID,
			MaxDailyTxs: selected.MaxDailyTxs,
		}
	}

	out := Decision{
		PolicyID:        selected.PolicyID,
		RateLimitPerMin: selected.RateLimitPerMin,
		MaxAmountXRP:    selected.MaxAmountXRP,
		MaxDailyTxs:     selected.MaxDailyTxs,
	}
	if selected.RequiresMultiSign {
		out.Outcome = OutcomeRequireMultiSig
		out.RequiredApprovers = selected.MinSigners
		return out
	}
	out.Outcome = OutcomeAllow
	return out
}

// selectMostRestrictive is the documented tie-break when multiple active
// policies match: lowest non-nil MaxAmountXRP wins, unbounded sorts last,
// policy id is the final stable key.
func selectMostRestrictive(policies []domain.SigningPolicy) domain.SigningPolicy {
	sorted := make([]domain.SigningPolicy, len(policies))
	copy(sorted, policies)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].MaxAmountXRP, sorted[j].MaxAmountXRP
		switch {
		case a == nil && b == nil:
			return sorted[i].PolicyID < sorted[j].PolicyID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.LessThan(*b)
		default:
			return sorted[i].PolicyID < sorted[j].PolicyID
		}
	})
	return sorted[0]
}
