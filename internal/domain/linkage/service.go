// Package linkage maintains the sale to external-invoice association and
// keeps totals and margins consistent across link, unlink, relink, VAT fix
// and payment application. Every mutation is one atomic read-modify-write
// with a compare-and-swap on the sale's version.
package linkage

import (
	"context"
	"time"

	"club19/internal/core/apperror"
	appctx "club19/internal/core/context"
	"club19/internal/core/id"
	"club19/internal/core/security"
	"club19/internal/core/tx"
	"club19/internal/core/types"
	"club19/internal/domain/audit"
	"club19/internal/domain/commission"
	"club19/internal/domain/economics"
	"club19/internal/domain/errorlog"
	"club19/internal/domain/gateway"
	"club19/internal/domain/sale"
	"club19/pkg/logger"
)

// Service is the invoice linkage manager.
type Service struct {
	repo      sale.Repository
	txManager tx.Manager
	calc      *economics.Calculator
	bands     commission.Repository
	policy    security.Policy
	errors    errorlog.Recorder
	auditor   audit.Recorder
}

// NewService wires the linkage manager.
func NewService(
	repo sale.Repository,
	txManager tx.Manager,
	calc *economics.Calculator,
	bands commission.Repository,
	policy security.Policy,
	errors errorlog.Recorder,
	auditor audit.Recorder,
) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		calc:      calc,
		bands:     bands,
		policy:    policy,
		errors:    errors,
		auditor:   auditor,
	}
}

// recompute derives ex-VAT, margins and commission from the sale's current
// inc-VAT total and cost fields. The margin formula is the single
// authoritative one; nothing else recomputes margins inline.
func (s *Service) recompute(ctx context.Context, sl *sale.Sale) error {
	amounts, err := s.calc.CalculateVatFromInc(sl.BrandingTheme, sl.SaleAmountIncVat)
	if err != nil {
		return err
	}
	sl.SaleAmountExVat = amounts.SaleAmountExVat
	sl.VatAmount = amounts.VatAmount

	margins := economics.CalculateMargins(economics.MarginInput{
		SaleAmountExVat:      sl.SaleAmountExVat,
		BuyPrice:             sl.BuyPrice,
		ShippingCost:         sl.ShippingCost,
		CardFees:             sl.CardFees,
		DirectCosts:          sl.DirectCosts,
		IntroducerCommission: sl.IntroducerCommission,
	})
	sl.GrossMargin = margins.GrossMargin
	sl.CommissionableMargin = margins.CommissionableMargin

	if s.bands != nil {
		bands, err := s.bands.ListByType(ctx, commission.BandTypeSale)
		if err != nil {
			return err
		}
		band, _ := economics.ResolveCommissionBand(bands, sl.CommissionableMargin)
		sl.CommissionAmount = economics.CalculateCommission(band, sl.CommissionableMargin)
	}
	return nil
}

// loadImport fetches and validates an import row for linking.
func (s *Service) loadImport(ctx context.Context, importID id.ID) (*sale.Sale, error) {
	imp, err := s.repo.GetForUpdate(ctx, importID)
	if err != nil {
		return nil, err
	}
	if imp.Source != sale.SourceXeroImport {
		return nil, apperror.NewInvalidSourceType(string(sale.SourceXeroImport), string(imp.Source))
	}
	if imp.DeletedAt != nil || !imp.NeedsAllocation {
		return nil, apperror.NewAlreadyLinked(imp.XeroInvoiceID)
	}
	return imp, nil
}

// LinkInvoice appends the import's invoice to the sale's linked set,
// recomputes totals and margins, and consumes the import row. Single
// transaction; the external invoice can fund at most one live sale.
// Any non-import sale is a valid target: adopted imports accept links
// the same way atelier sales do, only xero_import rows are refused.
func (s *Service) LinkInvoice(ctx context.Context, saleID, externalImportID id.ID) (*sale.Sale, error) {
	var result *sale.Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		target, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := s.policy.CanLink(appctx.GetActor(ctx), target.ShopperID); err != nil {
			return err
		}
		if target.Source == sale.SourceXeroImport {
			return apperror.NewInvalidSourceType(string(sale.SourceAtelier), string(target.Source))
		}
		if err := target.CanMutateEconomics(); err != nil {
			return err
		}

		imp, err := s.loadImport(ctx, externalImportID)
		if err != nil {
			return err
		}
		if imp.Currency != target.Currency {
			return apperror.NewCurrencyMismatch(target.Currency, imp.Currency)
		}
		if target.IsLinkedTo(imp.XeroInvoiceID) {
			return apperror.NewAlreadyLinked(imp.XeroInvoiceID)
		}
		holders, err := s.repo.FindByExternalInvoiceID(ctx, imp.XeroInvoiceID)
		if err != nil {
			return err
		}
		for i := range holders {
			if holders[i].ID != imp.ID {
				return apperror.NewAlreadyLinked(imp.XeroInvoiceID)
			}
		}

		record := sale.LinkedInvoice{
			ExternalInvoiceID:     imp.XeroInvoiceID,
			ExternalInvoiceNumber: imp.XeroInvoiceNumber,
			AmountIncVat:          imp.SaleAmountIncVat,
			Currency:              imp.Currency,
			InvoiceDate:           imp.SaleDate,
			LinkedAt:              time.Now().UTC(),
			LinkedBy:              appctx.GetActorID(ctx),
		}

		// The primary amount is whatever part of the total is not already
		// funded by linked invoices. It stays fixed across link/unlink.
		primary := types.SubCurrency(target.SaleAmountIncVat, target.LinkedInvoices.Total())
		target.LinkedInvoices = append(target.LinkedInvoices, record)
		target.SaleAmountIncVat = types.AddCurrency(primary, target.LinkedInvoices.Total())
		if err := s.recompute(ctx, target); err != nil {
			return err
		}
		target.UpdatedBy = appctx.GetActorID(ctx)
		target.Touch()
		if err := s.repo.Update(ctx, target); err != nil {
			return err
		}

		now := time.Now().UTC()
		imp.DeletedAt = &now
		imp.NeedsAllocation = false
		imp.Touch()
		if err := s.repo.Update(ctx, imp); err != nil {
			return err
		}

		s.recordAudit(ctx, target.ID, audit.ActionLinkInvoice, map[string]any{
			"external_invoice_id": record.ExternalInvoiceID,
			"amount_inc_vat":      record.AmountIncVat,
		})
		result = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice linked",
		"sale_id", saleID.String(), "import_id", externalImportID.String())
	return result, nil
}

// UnlinkInvoice removes an invoice from the linked set, recomputes totals
// and margins, and then restores the consumed import row best-effort after
// commit. The sale and the import are not updated atomically together; a
// failed restore leaves a warning for manual follow-up.
func (s *Service) UnlinkInvoice(ctx context.Context, saleID id.ID, externalInvoiceID string) (*sale.Sale, error) {
	var result *sale.Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		target, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := s.policy.CanLink(appctx.GetActor(ctx), target.ShopperID); err != nil {
			return err
		}
		if err := target.CanMutateEconomics(); err != nil {
			return err
		}
		if !target.LinkedInvoices.Contains(externalInvoiceID) {
			return apperror.NewNotLinked(externalInvoiceID)
		}

		primary := types.SubCurrency(target.SaleAmountIncVat, target.LinkedInvoices.Total())
		remaining := make(sale.LinkedInvoiceList, 0, len(target.LinkedInvoices)-1)
		for _, li := range target.LinkedInvoices {
			if li.ExternalInvoiceID != externalInvoiceID {
				remaining = append(remaining, li)
			}
		}
		target.LinkedInvoices = remaining
		target.SaleAmountIncVat = types.AddCurrency(primary, remaining.Total())
		if err := s.recompute(ctx, target); err != nil {
			return err
		}
		target.UpdatedBy = appctx.GetActorID(ctx)
		target.Touch()
		if err := s.repo.Update(ctx, target); err != nil {
			return err
		}

		s.recordAudit(ctx, target.ID, audit.ActionUnlinkInvoice, map[string]any{
			"external_invoice_id": externalInvoiceID,
		})
		result = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.restoreImport(ctx, saleID, externalInvoiceID)
	return result, nil
}

// restoreImport puts the soft-deleted import row back into the allocation
// queue after a successful unlink. Best-effort: the unlink has already
// committed, so failure here only records a warning.
func (s *Service) restoreImport(ctx context.Context, saleID id.ID, externalInvoiceID string) {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		imp, err := s.repo.FindRestorableImport(ctx, externalInvoiceID)
		if err != nil {
			return err
		}
		if imp == nil {
			return apperror.NewNotFound("import", externalInvoiceID)
		}
		imp.DeletedAt = nil
		imp.NeedsAllocation = true
		imp.Touch()
		return s.repo.Update(ctx, imp)
	})
	if err == nil {
		return
	}

	logger.Warn(ctx, "import restore after unlink failed",
		"sale_id", saleID.String(), "external_invoice_id", externalInvoiceID, "error", err)
	if s.errors != nil {
		rec := errorlog.New(saleID, errorlog.SeverityLow, "linkage",
			"unlinked invoice "+externalInvoiceID+" but no import row could be restored").
			WithWarningType(errorlog.WarningRestoreFailed)
		if _, uerr := s.errors.UpsertWarning(ctx, rec); uerr != nil {
			logger.Error(ctx, "recording restore warning failed", "error", uerr)
		}
	}
}

// RelinkPrimaryInvoice replaces the sale's primary external identity with
// the import's, consuming the import. The linked set is untouched.
func (s *Service) RelinkPrimaryInvoice(ctx context.Context, saleID, externalImportID id.ID) (*sale.Sale, error) {
	var result *sale.Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		target, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := s.policy.CanLink(appctx.GetActor(ctx), target.ShopperID); err != nil {
			return err
		}
		if target.Source == sale.SourceXeroImport {
			return apperror.NewInvalidSourceType(string(sale.SourceAtelier), string(target.Source))
		}
		if err := target.CanMutateEconomics(); err != nil {
			return err
		}

		imp, err := s.loadImport(ctx, externalImportID)
		if err != nil {
			return err
		}
		if imp.Currency != target.Currency {
			return apperror.NewCurrencyMismatch(target.Currency, imp.Currency)
		}

		previous := target.XeroInvoiceID
		target.XeroInvoiceID = imp.XeroInvoiceID
		target.XeroInvoiceNumber = imp.XeroInvoiceNumber
		target.XeroInvoiceURL = imp.XeroInvoiceURL
		target.InvoiceStatus = imp.InvoiceStatus
		target.InvoiceDueDate = imp.InvoiceDueDate
		target.InvoicePaidDate = imp.InvoicePaidDate
		target.UpdatedBy = appctx.GetActorID(ctx)
		target.Touch()
		if err := s.repo.Update(ctx, target); err != nil {
			return err
		}

		now := time.Now().UTC()
		imp.DeletedAt = &now
		imp.NeedsAllocation = false
		imp.Touch()
		if err := s.repo.Update(ctx, imp); err != nil {
			return err
		}

		s.recordAudit(ctx, target.ID, audit.ActionRelinkPrimary, map[string]any{
			"previous_invoice_id": previous,
			"new_invoice_id":      target.XeroInvoiceID,
		})
		result = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FixVat applies the named zero-rated correction to the sale's stored
// amounts. Exposed explicitly so the correction is auditable; never
// triggered silently.
func (s *Service) FixVat(ctx context.Context, saleID id.ID) (economics.VatAmounts, error) {
	var amounts economics.VatAmounts
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		target, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := s.policy.CanLink(appctx.GetActor(ctx), target.ShopperID); err != nil {
			return err
		}
		if err := target.CanMutateEconomics(); err != nil {
			return err
		}

		fixed, applied, err := s.calc.FixZeroRatedVatBug(
			target.BrandingTheme, target.SaleAmountExVat, target.SaleAmountIncVat)
		if err != nil {
			return err
		}
		amounts = fixed
		if !applied {
			return nil
		}

		target.SaleAmountExVat = fixed.SaleAmountExVat
		target.SaleAmountIncVat = fixed.SaleAmountIncVat
		target.VatAmount = fixed.VatAmount
		if err := s.recompute(ctx, target); err != nil {
			return err
		}
		target.UpdatedBy = appctx.GetActorID(ctx)
		target.Touch()
		if err := s.repo.Update(ctx, target); err != nil {
			return err
		}

		s.recordAudit(ctx, target.ID, audit.ActionFixVat, fixed)
		return nil
	})
	if err != nil {
		return economics.VatAmounts{}, err
	}
	return amounts, nil
}

// MarginChange is one field delta produced by a margin recalculation.
type MarginChange struct {
	SaleID        id.ID       `json:"saleId"`
	SaleReference string      `json:"saleReference"`
	Field         string      `json:"field"`
	Before        types.Money `json:"before"`
	After         types.Money `json:"after"`
}

// RecalcSummary reports a bulk margin recalculation run.
type RecalcSummary struct {
	Processed int            `json:"processed"`
	Updated   int            `json:"updated"`
	Skipped   int            `json:"skipped"`
	Changes   []MarginChange `json:"changes"`
}

// RecalculateMargins re-derives margins for the given sales (or every
// active sale when saleIDs is empty) through the authoritative formula.
// With dryRun the deltas are reported but nothing is written. Locked and
// unknown-theme sales are skipped, never failed.
func (s *Service) RecalculateMargins(ctx context.Context, saleIDs []id.ID, dryRun bool) (RecalcSummary, error) {
	summary := RecalcSummary{Changes: []MarginChange{}}

	var targets []id.ID
	if len(saleIDs) > 0 {
		targets = saleIDs
	} else {
		sales, err := s.repo.ListActiveForIntegrity(ctx)
		if err != nil {
			return summary, err
		}
		for i := range sales {
			targets = append(targets, sales[i].ID)
		}
	}

	for _, sid := range targets {
		summary.Processed++
		changed, changes, err := s.recalculateOne(ctx, sid, dryRun)
		if err != nil {
			logger.Warn(ctx, "margin recalculation skipped",
				"sale_id", sid.String(), "error", err)
			summary.Skipped++
			continue
		}
		if changed {
			summary.Updated++
			summary.Changes = append(summary.Changes, changes...)
		} else {
			summary.Skipped++
		}
	}
	return summary, nil
}

func (s *Service) recalculateOne(ctx context.Context, saleID id.ID, dryRun bool) (bool, []MarginChange, error) {
	var (
		changed bool
		changes []MarginChange
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		target, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := target.CanMutateEconomics(); err != nil {
			return err
		}

		before := *target
		if err := s.recompute(ctx, target); err != nil {
			return err
		}

		for _, d := range []struct {
			field         string
			before, after types.Money
		}{
			{"sale_amount_ex_vat", before.SaleAmountExVat, target.SaleAmountExVat},
			{"gross_margin", before.GrossMargin, target.GrossMargin},
			{"commissionable_margin", before.CommissionableMargin, target.CommissionableMargin},
			{"commission_amount", before.CommissionAmount, target.CommissionAmount},
		} {
			if !types.EqualCurrency(d.before, d.after) {
				changes = append(changes, MarginChange{
					SaleID:        target.ID,
					SaleReference: target.SaleReference,
					Field:         d.field,
					Before:        d.before,
					After:         d.after,
				})
			}
		}
		if len(changes) == 0 {
			return nil
		}
		changed = true
		if dryRun {
			return nil
		}

		target.UpdatedBy = appctx.GetActorID(ctx)
		target.Touch()
		if err := s.repo.Update(ctx, target); err != nil {
			return err
		}
		s.recordAudit(ctx, target.ID, audit.ActionRecalcMargins, changes)
		return nil
	})
	return changed, changes, err
}

// ApplyPaymentPaid records that the external invoice for this sale is
// settled. Idempotent: a sale already carrying paid state is a no-op, so
// re-running the reconciliation sweep never duplicates the transition.
func (s *Service) ApplyPaymentPaid(ctx context.Context, saleID id.ID, inv *gateway.Invoice) (bool, error) {
	var updated bool
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		target, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if target.InvoiceStatus == gateway.InvoiceStatusPaid && target.InvoicePaidDate != nil {
			return nil
		}
		if target.IsLocked() || target.Status == sale.StatusVoided {
			return nil
		}

		paidOn := inv.FullyPaidOn
		if paidOn == nil {
			now := time.Now().UTC()
			paidOn = &now
		}
		target.InvoiceStatus = gateway.InvoiceStatusPaid
		target.InvoicePaidDate = paidOn
		target.XeroPaymentDate = paidOn
		target.AmountDue = types.Zero()
		if target.Status == sale.StatusInvoiced || target.Status == sale.StatusActive {
			target.Status = sale.StatusPaid
		}
		target.Touch()
		if err := s.repo.Update(ctx, target); err != nil {
			return err
		}

		s.recordAudit(ctx, target.ID, audit.ActionPaymentApplied, map[string]any{
			"external_invoice_id": inv.ID,
			"paid_on":             paidOn,
		})
		updated = true
		return nil
	})
	return updated, err
}

func (s *Service) recordAudit(ctx context.Context, saleID id.ID, action string, payload any) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.RecordChange(ctx, "sale", saleID, action, payload); err != nil {
		logger.Warn(ctx, "audit record failed",
			"sale_id", saleID.String(), "action", action, "error", err)
	}
}
