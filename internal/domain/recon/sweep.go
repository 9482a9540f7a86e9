// Package recon implements the payment reconciliation sweep: comparing
// local sale state against the external invoicing gateway and applying
// paid/voided outcomes through the same update path interactive
// operations use.
package recon

import (
	"context"
	"time"

	"club19/internal/core/apperror"
	"club19/internal/domain/errorlog"
	"club19/internal/domain/gateway"
	"club19/internal/domain/lifecycle"
	"club19/internal/domain/linkage"
	"club19/internal/domain/sale"
	"club19/pkg/logger"
)

// fetchTimeout bounds each per-invoice gateway call. A timeout is a
// transient per-item failure; the sweep continues with the next sale.
const fetchTimeout = 15 * time.Second

// Summary reports one sweep run.
type Summary struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// Sweep reconciles payment state for every sale awaiting payment.
type Sweep struct {
	repo      sale.Repository
	gw        gateway.Client
	linkage   *linkage.Service
	lifecycle *lifecycle.Service
	errors    errorlog.Recorder
}

// NewSweep wires the reconciliation sweep.
func NewSweep(
	repo sale.Repository,
	gw gateway.Client,
	linkageSvc *linkage.Service,
	lifecycleSvc *lifecycle.Service,
	errors errorlog.Recorder,
) *Sweep {
	return &Sweep{
		repo:      repo,
		gw:        gw,
		linkage:   linkageSvc,
		lifecycle: lifecycleSvc,
		errors:    errors,
	}
}

// Run executes one sweep. Credentials are obtained once for the whole
// batch; failure there aborts the run with a single high-severity error
// record. Individual sale failures are recorded and skipped.
func (s *Sweep) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	cred, err := s.gw.Obtain(ctx)
	if err != nil {
		severity := errorlog.SeverityHigh
		msg := "reconciliation aborted: gateway credentials unavailable"
		if apperror.IsGatewayAuth(err) {
			severity = errorlog.SeverityCritical
			msg = "reconciliation aborted: gateway authorization rejected, reconnect required"
		}
		rec := errorlog.NewSystem(severity, "recon", msg, err.Error()).
			WithWarningType(errorlog.WarningGatewayCredential)
		if _, rerr := s.errors.UpsertWarning(ctx, rec); rerr != nil {
			logger.Error(ctx, "recording credential failure failed", "error", rerr)
		}
		logger.Error(ctx, "reconciliation sweep aborted", "error", err)
		return summary, err
	}

	sales, err := s.repo.ListAwaitingPayment(ctx)
	if err != nil {
		return summary, err
	}
	logger.Info(ctx, "reconciliation sweep started", "candidates", len(sales))

	for i := range sales {
		sl := &sales[i]
		if !sl.HasPrimaryInvoice() {
			continue
		}
		summary.Checked++

		updated, err := s.reconcileOne(ctx, cred, sl)
		if err != nil {
			summary.Errors++
			s.recordItemFailure(ctx, sl, err)
			continue
		}
		if updated {
			summary.Updated++
		}
	}

	logger.Info(ctx, "reconciliation sweep finished",
		"checked", summary.Checked, "updated", summary.Updated, "errors", summary.Errors)
	return summary, nil
}

func (s *Sweep) reconcileOne(ctx context.Context, cred *gateway.Credential, sl *sale.Sale) (bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	inv, err := s.gw.GetInvoice(fetchCtx, cred, sl.XeroInvoiceID)
	if err != nil {
		return false, err
	}

	switch {
	case inv.Status == gateway.InvoiceStatusVoided, inv.Status == gateway.InvoiceStatusDeleted:
		if sl.Status == sale.StatusVoided {
			return false, nil
		}
		if err := s.lifecycle.MarkVoided(ctx, sl.ID); err != nil {
			return false, err
		}
		return true, nil
	case inv.IsPaid():
		return s.linkage.ApplyPaymentPaid(ctx, sl.ID, inv)
	default:
		return false, nil
	}
}

// recordItemFailure writes one medium-severity record per sale per failure
// kind. Upserted by warning type so repeated sweeps refresh rather than
// duplicate it.
func (s *Sweep) recordItemFailure(ctx context.Context, sl *sale.Sale, cause error) {
	logger.Warn(ctx, "reconciliation item failed",
		"sale_id", sl.ID.String(), "invoice_id", sl.XeroInvoiceID, "error", cause)
	rec := errorlog.New(sl.ID, errorlog.SeverityMedium, "recon",
		"could not reconcile invoice "+sl.XeroInvoiceID, cause.Error()).
		WithWarningType(errorlog.WarningReconcileFailed)
	if _, err := s.errors.UpsertWarning(ctx, rec); err != nil {
		logger.Error(ctx, "recording reconciliation failure failed", "error", err)
	}
}
