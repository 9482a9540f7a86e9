// Package theme provides the branding theme mapping reference data.
// A branding theme determines which VAT rate and ledger account code apply
// to a sale. Unknown theme keys are an error condition, never a default.
package theme

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"club19/internal/core/apperror"
	"club19/internal/core/types"
)

// Mapping maps a theme key to its display name, ledger account code and
// expected VAT rate (a fraction in [0,1], e.g. 0.20 for UK standard rate).
type Mapping struct {
	ThemeKey        string      `db:"theme_key" json:"themeKey"`
	DisplayName     string      `db:"display_name" json:"displayName"`
	AccountCode     string      `db:"account_code" json:"accountCode"`
	ExpectedVatRate types.Money `db:"expected_vat_rate" json:"expectedVatRate"`
}

// Validate checks mapping invariants.
func (m Mapping) Validate(ctx context.Context) error {
	if m.ThemeKey == "" {
		return apperror.NewValidation("theme key is required").
			WithDetail("field", "themeKey")
	}
	if m.ExpectedVatRate.IsNegative() || m.ExpectedVatRate.GreaterThan(decimal.NewFromInt(1)) {
		return apperror.NewValidation("expected VAT rate must be within [0,1]").
			WithDetail("field", "expectedVatRate").
			WithDetail("value", m.ExpectedVatRate.String())
	}
	return nil
}

// Repository loads branding theme mappings from storage.
type Repository interface {
	ListAll(ctx context.Context) ([]Mapping, error)
}

// Registry is a read-only in-memory snapshot of branding themes.
// Reference data requires no locking during lookups beyond snapshot swap.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]Mapping
}

// NewRegistry creates a registry from the given mappings.
func NewRegistry(mappings []Mapping) *Registry {
	r := &Registry{}
	r.Replace(mappings)
	return r
}

// Replace swaps the full mapping set (used on reload from storage).
func (r *Registry) Replace(mappings []Mapping) {
	byKey := make(map[string]Mapping, len(mappings))
	for _, m := range mappings {
		byKey[m.ThemeKey] = m
	}
	r.mu.Lock()
	r.byKey = byKey
	r.mu.Unlock()
}

// Resolve returns the mapping for themeKey.
func (r *Registry) Resolve(themeKey string) (Mapping, error) {
	r.mu.RLock()
	m, ok := r.byKey[themeKey]
	r.mu.RUnlock()
	if !ok {
		return Mapping{}, apperror.NewUnknownTheme(themeKey)
	}
	return m, nil
}

// Load refreshes the registry from the repository.
func (r *Registry) Load(ctx context.Context, repo Repository) error {
	mappings, err := repo.ListAll(ctx)
	if err != nil {
		return err
	}
	r.Replace(mappings)
	return nil
}

// DefaultMappings returns the built-in theme set used by seed and tests.
func DefaultMappings() []Mapping {
	return []Mapping{
		{ThemeKey: "standard", DisplayName: "Standard Rated", AccountCode: "200", ExpectedVatRate: types.MustMoney("0.20")},
		{ThemeKey: "margin_scheme", DisplayName: "Margin Scheme", AccountCode: "260", ExpectedVatRate: types.MustMoney("0")},
		{ThemeKey: "zero_rated", DisplayName: "Zero Rated Export", AccountCode: "205", ExpectedVatRate: types.MustMoney("0")},
	}
}
