package policy

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
)

type seedFile struct {
	Policies []seedPolicy `yaml:"policies"`
}

type seedPolicy struct {
	PolicyID          string   `yaml:"policy_id"`
	Name              string   `yaml:"name"`
	Network           string   `yaml:"network"`
	WalletRoles       []string `yaml:"wallet_roles"`
	AllowedTxTypes    []string `yaml:"allowed_tx_types"`
	MaxAmountXRP      *string  `yaml:"max_amount_xrp"`
	MaxDailyTxs       *int     `yaml:"max_daily_txs"`
	RateLimitPerMin   int      `yaml:"rate_limit_per_min"`
	RequiresMultiSign bool     `yaml:"requires_multi_sign"`
	MinSigners        int      `yaml:"min_signers"`
	Active            *bool    `yaml:"active"`
}

// LoadSeedFile parses a YAML policy seed document and validates every entry.
// The composition root upserts the result at startup.
func LoadSeedFile(path string) ([]domain.SigningPolicy, error) {
	// #nosec G304 -- path is operator-configured.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc seedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("policy seed %s: %w", path, err)
	}

	out := make([]domain.SigningPolicy, 0, len(doc.Policies))
	for i, sp := range doc.Policies {
		p := domain.SigningPolicy{
			PolicyID:          sp.PolicyID,
			Name:              sp.Name,
			Network:           domain.Network(sp.Network),
			RateLimitPerMin:   sp.RateLimitPerMin,
			RequiresMultiSign: sp.RequiresMultiSign,
			MinSigners:        sp.MinSigners,
			MaxDailyTxs:       sp.MaxDailyTxs,
			Active:            true,
		}
		if sp.Active != nil {
			p.Active = *sp.Active
		}
		for _, r := range sp.WalletRoles {
			p.WalletRoles = append(p.WalletRoles, domain.WalletRole(r))
		}
		for _, t := range sp.AllowedTxTypes {
			p.AllowedTxTypes = append(p.AllowedTxTypes, domain.TxType(t))
		}
		if sp.MaxAmountXRP != nil {
			amt, err := decimal.NewFromString(*sp.MaxAmountXRP)
			if err != nil {
				return nil, fmt.Errorf("policy seed %s: entry %d: max_amount_xrp: %w", path, i, err)
			}
			p.MaxAmountXRP = &amt
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy seed %s: entry %d: %w", path, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}
