// Package integrity derives data-quality flags from sale snapshots and
// records warnings for human review. Warnings never block any operation.
package integrity

import (
	"time"

	"club19/internal/core/types"
	"club19/internal/domain/sale"
)

// AuthenticityRisk classifications, ordered from benign to severe.
const (
	RiskClean          = "clean"
	RiskMissingReceipt = "missing_receipt"
	RiskNotVerified    = "not_verified"
	RiskHighRisk       = "high_risk"
)

// highRiskBuyPrice is the buy price above which an unverified item is
// treated as high risk rather than merely unverified.
var highRiskBuyPrice = types.MustMoney("5000")

// suspiciousMarginCeiling flags margins above 200% of revenue.
var suspiciousMarginCeiling = types.MustMoney("200")

// OverdueFlags is the payment-lateness view of one sale.
type OverdueFlags struct {
	IsOverdue   bool `json:"isOverdue"`
	DaysOverdue int  `json:"daysOverdue"`
}

// ComputeOverdueFlags derives lateness from the invoice due date and the
// current payment state. Settled and voided sales are never overdue.
func ComputeOverdueFlags(s *sale.Sale, now time.Time) OverdueFlags {
	if s.InvoiceDueDate == nil || s.InvoicePaidDate != nil {
		return OverdueFlags{}
	}
	switch s.Status {
	case sale.StatusPaid, sale.StatusLocked, sale.StatusCommissionPaid, sale.StatusVoided:
		return OverdueFlags{}
	}
	if !now.After(*s.InvoiceDueDate) {
		return OverdueFlags{}
	}
	days := int(now.Sub(*s.InvoiceDueDate).Hours() / 24)
	return OverdueFlags{IsOverdue: true, DaysOverdue: days}
}

// MarginMetrics is the relative-margin view of one sale.
type MarginMetrics struct {
	MarginPercent types.Money `json:"marginPercent"`
}

// ComputeMarginMetrics derives marginPercent = grossMargin / revenue * 100
// over the ex-VAT revenue. Zero revenue yields zero percent.
func ComputeMarginMetrics(s *sale.Sale) MarginMetrics {
	if s.SaleAmountExVat.IsZero() {
		return MarginMetrics{MarginPercent: types.Zero()}
	}
	pct := s.GrossMargin.Div(s.SaleAmountExVat).Mul(types.MustMoney("100"))
	return MarginMetrics{MarginPercent: types.RoundCurrency(pct)}
}

// ComputeAuthenticityRisk classifies the sale from its supplier
// documentation: verified items are clean, items without a receipt lack
// provenance, unverified high-value items are high risk.
func ComputeAuthenticityRisk(s *sale.Sale) string {
	if s.AuthenticityVerified {
		return RiskClean
	}
	if s.ReceiptReference == "" {
		if s.BuyPrice.GreaterThanOrEqual(highRiskBuyPrice) {
			return RiskHighRisk
		}
		return RiskMissingReceipt
	}
	if s.BuyPrice.GreaterThanOrEqual(highRiskBuyPrice) {
		return RiskHighRisk
	}
	return RiskNotVerified
}
