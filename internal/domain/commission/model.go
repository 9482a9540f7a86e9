// Package commission provides the commission band reference data.
// Bands map a commissionable margin range to a commission percentage.
package commission

import (
	"context"

	"club19/internal/core/apperror"
	"club19/internal/core/entity"
	"club19/internal/core/types"
)

// BandTypeSale is the band set applied to shopper sale commissions.
const BandTypeSale = "sale"

// Band is a commission band: sales whose commissionable margin falls within
// [MinThreshold, MaxThreshold) earn CommissionPercent of that margin.
// A nil MaxThreshold means the band is open-ended.
type Band struct {
	entity.BaseEntity

	BandType          string       `db:"band_type" json:"bandType"`
	MinThreshold      types.Money  `db:"min_threshold" json:"minThreshold"`
	MaxThreshold      *types.Money `db:"max_threshold" json:"maxThreshold,omitempty"`
	CommissionPercent types.Money  `db:"commission_percent" json:"commissionPercent"`
}

// Validate checks band invariants.
func (b *Band) Validate(ctx context.Context) error {
	if b.BandType == "" {
		return apperror.NewValidation("band type is required").
			WithDetail("field", "bandType")
	}
	if b.CommissionPercent.IsNegative() {
		return apperror.NewValidation("commission percent must not be negative").
			WithDetail("field", "commissionPercent")
	}
	if b.MaxThreshold != nil && b.MaxThreshold.LessThanOrEqual(b.MinThreshold) {
		return apperror.NewValidation("max threshold must exceed min threshold").
			WithDetail("field", "maxThreshold")
	}
	return nil
}

// Contains reports whether margin falls within the band's range.
func (b *Band) Contains(margin types.Money) bool {
	if margin.LessThan(b.MinThreshold) {
		return false
	}
	if b.MaxThreshold != nil && margin.GreaterThanOrEqual(*b.MaxThreshold) {
		return false
	}
	return true
}

// Repository loads commission bands from storage.
type Repository interface {
	ListByType(ctx context.Context, bandType string) ([]Band, error)
}
