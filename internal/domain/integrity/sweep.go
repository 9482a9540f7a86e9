package integrity

import (
	"context"
	"fmt"
	"time"

	"club19/internal/domain/errorlog"
	"club19/internal/domain/sale"
	"club19/pkg/logger"
)

// Summary reports one integrity sweep run.
type Summary struct {
	// OverdueSales lists the sale references currently past due.
	OverdueSales []string `json:"overdueSales"`

	// WarningsCreated lists "reference: warning_type" for each newly
	// created record. Refreshed (already open) warnings are not listed.
	WarningsCreated []string `json:"warningsCreated"`
}

// Sweep derives quality flags for every active sale and records warnings.
type Sweep struct {
	repo   sale.Repository
	errors errorlog.Recorder
}

// NewSweep wires the integrity sweep.
func NewSweep(repo sale.Repository, errors errorlog.Recorder) *Sweep {
	return &Sweep{repo: repo, errors: errors}
}

// Run scans every non-deleted, non-voided sale. Warnings are upserted by
// (sale, warning type), so a repeated run refreshes open warnings instead
// of stacking duplicates.
func (s *Sweep) Run(ctx context.Context) (Summary, error) {
	summary := Summary{OverdueSales: []string{}, WarningsCreated: []string{}}

	sales, err := s.repo.ListActiveForIntegrity(ctx)
	if err != nil {
		return summary, err
	}
	now := time.Now().UTC()

	for i := range sales {
		sl := &sales[i]
		ref := sl.SaleReference
		if ref == "" {
			ref = sl.ID.String()
		}

		overdue := ComputeOverdueFlags(sl, now)
		if overdue.IsOverdue {
			summary.OverdueSales = append(summary.OverdueSales, ref)
			s.warn(ctx, &summary, sl, ref, errorlog.SeverityLow, errorlog.WarningOverdueInvoice,
				fmt.Sprintf("invoice %s is %d days overdue", sl.XeroInvoiceNumber, overdue.DaysOverdue))
		}

		metrics := ComputeMarginMetrics(sl)
		if sl.CommissionableMargin.IsNegative() {
			s.warn(ctx, &summary, sl, ref, errorlog.SeverityMedium, errorlog.WarningNegativeMargin,
				"commissionable margin is negative: "+sl.CommissionableMargin.StringFixed(2))
		}
		if metrics.MarginPercent.GreaterThan(suspiciousMarginCeiling) {
			s.warn(ctx, &summary, sl, ref, errorlog.SeverityMedium, errorlog.WarningSuspiciousMargin,
				"margin percent "+metrics.MarginPercent.StringFixed(2)+" exceeds plausible ceiling")
		}
		if sl.SaleAmountIncVat.IsZero() {
			s.warn(ctx, &summary, sl, ref, errorlog.SeverityLow, errorlog.WarningZeroSaleAmount,
				"sale amount is zero")
		}
		if sl.BuyPrice.GreaterThan(sl.SaleAmountIncVat) && !sl.SaleAmountIncVat.IsZero() {
			s.warn(ctx, &summary, sl, ref, errorlog.SeverityMedium, errorlog.WarningBuyExceedsSale,
				"buy price "+sl.BuyPrice.StringFixed(2)+" exceeds sale amount "+sl.SaleAmountIncVat.StringFixed(2))
		}
		if ComputeAuthenticityRisk(sl) == RiskHighRisk {
			s.warn(ctx, &summary, sl, ref, errorlog.SeverityHigh, errorlog.WarningAuthenticityRisk,
				"high-value item without verified provenance")
		}
	}

	logger.Info(ctx, "integrity sweep finished",
		"scanned", len(sales),
		"overdue", len(summary.OverdueSales),
		"warnings_created", len(summary.WarningsCreated))
	return summary, nil
}

func (s *Sweep) warn(ctx context.Context, summary *Summary, sl *sale.Sale, ref string, severity errorlog.Severity, warningType, message string) {
	rec := errorlog.New(sl.ID, severity, "integrity", message).WithWarningType(warningType)
	created, err := s.errors.UpsertWarning(ctx, rec)
	if err != nil {
		logger.Error(ctx, "recording integrity warning failed",
			"sale_id", sl.ID.String(), "warning_type", warningType, "error", err)
		return
	}
	if created {
		summary.WarningsCreated = append(summary.WarningsCreated, ref+": "+warningType)
	}
}
