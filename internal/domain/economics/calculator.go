// Package economics provides the authoritative monetary calculations for
// sales: VAT-correct totals, margins and commission amounts. All functions
// are pure over their inputs; every endpoint that touches margins must go
// through CalculateMargins rather than recompute inline.
package economics

import (
	"github.com/shopspring/decimal"

	"club19/internal/core/types"
	"club19/internal/domain/commission"
	"club19/internal/domain/theme"
)

// zeroRatedBugFactor is the erroneous divisor historically applied to
// zero-rated sales: the true total was divided by 1.2 as if standard rated.
var zeroRatedBugFactor = types.MustMoney("1.2")

// zeroRatedBugEpsilon is the currency-unit tolerance for the detection rule.
var zeroRatedBugEpsilon = types.MustMoney("1.0")

// VatAmounts is the result of a VAT computation.
type VatAmounts struct {
	SaleAmountExVat  types.Money `json:"saleAmountExVat"`
	SaleAmountIncVat types.Money `json:"saleAmountIncVat"`
	VatAmount        types.Money `json:"vatAmount"`
}

// MarginInput carries the raw inputs of the margin formula.
type MarginInput struct {
	SaleAmountExVat      types.Money
	BuyPrice             types.Money
	ShippingCost         types.Money
	CardFees             types.Money
	DirectCosts          types.Money
	IntroducerCommission types.Money
}

// MarginBreakdown itemizes each deduction applied between gross and
// commissionable margin.
type MarginBreakdown struct {
	Revenue              types.Money `json:"revenue"`
	BuyPrice             types.Money `json:"buyPrice"`
	ShippingCost         types.Money `json:"shippingCost"`
	CardFees             types.Money `json:"cardFees"`
	DirectCosts          types.Money `json:"directCosts"`
	IntroducerCommission types.Money `json:"introducerCommission"`
}

// MarginResult is the output of the authoritative margin formula.
type MarginResult struct {
	GrossMargin          types.Money     `json:"grossMargin"`
	CommissionableMargin types.Money     `json:"commissionableMargin"`
	Breakdown            MarginBreakdown `json:"breakdown"`
}

// Calculator derives tax-correct monetary amounts from raw inputs.
// VAT rates come from the branding theme registry; an unknown theme is an
// error, never a default (monetary recalculation is fail-closed).
type Calculator struct {
	themes *theme.Registry
}

// NewCalculator creates a calculator over the given theme registry.
func NewCalculator(themes *theme.Registry) *Calculator {
	return &Calculator{themes: themes}
}

// ResolveVatRate returns the VAT rate for a branding theme key.
func (c *Calculator) ResolveVatRate(themeKey string) (types.Money, error) {
	m, err := c.themes.Resolve(themeKey)
	if err != nil {
		return types.Zero(), err
	}
	return m.ExpectedVatRate, nil
}

// CalculateVat derives inc-VAT and VAT amounts from an ex-VAT amount:
// incVat = exVat * (1 + rate). For a 0% theme incVat equals exVat exactly.
func (c *Calculator) CalculateVat(themeKey string, saleAmountExVat types.Money) (VatAmounts, error) {
	rate, err := c.ResolveVatRate(themeKey)
	if err != nil {
		return VatAmounts{}, err
	}
	ex := types.RoundCurrency(saleAmountExVat)
	inc := types.RoundCurrency(ex.Mul(decimal.NewFromInt(1).Add(rate)))
	return VatAmounts{
		SaleAmountExVat:  ex,
		SaleAmountIncVat: inc,
		VatAmount:        types.SubCurrency(inc, ex),
	}, nil
}

// CalculateVatFromInc derives the ex-VAT amount from an inc-VAT total:
// exVat = incVat / (1 + rate). Used when totals change through invoice
// linking, where the inc-VAT side is authoritative.
func (c *Calculator) CalculateVatFromInc(themeKey string, saleAmountIncVat types.Money) (VatAmounts, error) {
	rate, err := c.ResolveVatRate(themeKey)
	if err != nil {
		return VatAmounts{}, err
	}
	inc := types.RoundCurrency(saleAmountIncVat)
	ex := types.RoundCurrency(inc.Div(decimal.NewFromInt(1).Add(rate)))
	return VatAmounts{
		SaleAmountExVat:  ex,
		SaleAmountIncVat: inc,
		VatAmount:        types.SubCurrency(inc, ex),
	}, nil
}

// DetectZeroRatedVatBug reports whether the stored amounts carry the
// historical zero-rated defect: the theme rate is 0 but the ex-VAT amount
// was derived by dividing the true total by 1.2. Detection rule:
// |incVat - exVat*1.2| < 1.0 currency units.
func (c *Calculator) DetectZeroRatedVatBug(themeKey string, currentExVat, currentIncVat types.Money) (bool, error) {
	rate, err := c.ResolveVatRate(themeKey)
	if err != nil {
		return false, err
	}
	if !rate.IsZero() {
		return false, nil
	}
	if types.EqualCurrency(currentExVat, currentIncVat) {
		return false, nil
	}
	diff := currentIncVat.Sub(currentExVat.Mul(zeroRatedBugFactor)).Abs()
	return diff.LessThan(zeroRatedBugEpsilon), nil
}

// FixZeroRatedVatBug corrects the zero-rated defect: the inc-VAT amount is
// taken as the true total and both amounts are set to it. Returns the
// corrected amounts and whether a correction was applied. This is an
// explicit, named operation so the heuristic stays auditable; it is never
// triggered silently.
func (c *Calculator) FixZeroRatedVatBug(themeKey string, currentExVat, currentIncVat types.Money) (VatAmounts, bool, error) {
	detected, err := c.DetectZeroRatedVatBug(themeKey, currentExVat, currentIncVat)
	if err != nil {
		return VatAmounts{}, false, err
	}
	if !detected {
		return VatAmounts{
			SaleAmountExVat:  types.RoundCurrency(currentExVat),
			SaleAmountIncVat: types.RoundCurrency(currentIncVat),
			VatAmount:        types.SubCurrency(currentIncVat, currentExVat),
		}, false, nil
	}
	total := types.RoundCurrency(currentIncVat)
	return VatAmounts{
		SaleAmountExVat:  total,
		SaleAmountIncVat: total,
		VatAmount:        types.Zero(),
	}, true, nil
}

// CalculateMargins implements the single authoritative margin formula:
//
//	grossMargin         = saleAmountExVat - buyPrice
//	commissionableMargin = grossMargin - shipping - cardFees - directCosts - introducerCommission
func CalculateMargins(in MarginInput) MarginResult {
	gross := types.SubCurrency(in.SaleAmountExVat, in.BuyPrice)
	commissionable := gross
	commissionable = types.SubCurrency(commissionable, in.ShippingCost)
	commissionable = types.SubCurrency(commissionable, in.CardFees)
	commissionable = types.SubCurrency(commissionable, in.DirectCosts)
	commissionable = types.SubCurrency(commissionable, in.IntroducerCommission)

	return MarginResult{
		GrossMargin:          gross,
		CommissionableMargin: commissionable,
		Breakdown: MarginBreakdown{
			Revenue:              types.RoundCurrency(in.SaleAmountExVat),
			BuyPrice:             types.RoundCurrency(in.BuyPrice),
			ShippingCost:         types.RoundCurrency(in.ShippingCost),
			CardFees:             types.RoundCurrency(in.CardFees),
			DirectCosts:          types.RoundCurrency(in.DirectCosts),
			IntroducerCommission: types.RoundCurrency(in.IntroducerCommission),
		},
	}
}

// ResolveCommissionBand finds the band containing the given commissionable
// margin. Returns false when no band matches.
func ResolveCommissionBand(bands []commission.Band, margin types.Money) (*commission.Band, bool) {
	for i := range bands {
		if bands[i].Contains(margin) {
			return &bands[i], true
		}
	}
	return nil, false
}

// CalculateCommission computes the commission amount for a band:
// margin * percent / 100, rounded to currency precision. Negative margins
// earn no commission.
func CalculateCommission(band *commission.Band, commissionableMargin types.Money) types.Money {
	if band == nil || commissionableMargin.IsNegative() {
		return types.Zero()
	}
	return types.RoundCurrency(
		commissionableMargin.Mul(band.CommissionPercent).Div(decimal.NewFromInt(100)))
}
