// Package lifecycle implements the interactive sale operations around the
// status machine: transitions with their gates, and the import
// adopt/dismiss queue.
package lifecycle

import (
	"context"
	"time"

	"club19/internal/core/apperror"
	appctx "club19/internal/core/context"
	"club19/internal/core/id"
	"club19/internal/core/security"
	"club19/internal/core/tx"
	"club19/internal/domain/audit"
	"club19/internal/domain/completeness"
	"club19/internal/domain/sale"
	"club19/pkg/logger"
)

// ReferenceSource issues the next human sale reference (e.g. "C19-0042").
type ReferenceSource interface {
	Next(ctx context.Context) (string, error)
}

// Service applies lifecycle transitions and import adoption.
type Service struct {
	repo      sale.Repository
	txManager tx.Manager
	policy    security.Policy
	refs      ReferenceSource
	auditor   audit.Recorder
}

// NewService wires the lifecycle service.
func NewService(
	repo sale.Repository,
	txManager tx.Manager,
	policy security.Policy,
	refs ReferenceSource,
	auditor audit.Recorder,
) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		policy:    policy,
		refs:      refs,
		auditor:   auditor,
	}
}

// TransitionStatus moves a sale to targetStatus through the interactive
// edge set. Voided is not reachable here; only the reconciliation sweep
// voids sales. Entering paid runs the completeness gate first.
func (s *Service) TransitionStatus(ctx context.Context, saleID id.ID, target sale.Status) (*sale.Sale, error) {
	if target == sale.StatusVoided {
		return nil, apperror.NewInvalidTransition("", string(sale.StatusVoided)).
			WithDetail("reason", "voiding is driven by payment reconciliation only")
	}

	var result *sale.Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}

		actor := appctx.GetActor(ctx)
		if err := s.policy.CanTransition(actor, current.ShopperID, string(target)); err != nil {
			return err
		}

		if current.Status == target {
			result = current
			return nil
		}
		if !sale.CanTransition(current.Status, target) {
			return apperror.NewInvalidTransition(string(current.Status), string(target))
		}

		from := current.Status
		if target == sale.StatusPaid {
			if a := completeness.Assess(current); !a.IsComplete {
				return apperror.NewIncompleteFields(a.MissingFields)
			}
			now := time.Now().UTC()
			current.CompletedAt = &now
			current.CompletedBy = appctx.GetActorID(ctx)
		}

		current.Status = target
		current.UpdatedBy = appctx.GetActorID(ctx)
		current.Touch()
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}

		s.recordAudit(ctx, current.ID, audit.ActionTransition, map[string]any{
			"from": from,
			"to":   target,
		})
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale status transitioned",
		"sale_id", saleID.String(), "status", result.Status)
	return result, nil
}

// ParkAsOngoing shelves an active sale.
func (s *Service) ParkAsOngoing(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return s.TransitionStatus(ctx, saleID, sale.StatusOngoing)
}

// Resume returns a parked sale to active.
func (s *Service) Resume(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return s.TransitionStatus(ctx, saleID, sale.StatusActive)
}

// MarkCompleted runs the completeness gate and moves the sale to paid.
func (s *Service) MarkCompleted(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return s.TransitionStatus(ctx, saleID, sale.StatusPaid)
}

// Lock freezes the sale for commission processing.
func (s *Service) Lock(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return s.TransitionStatus(ctx, saleID, sale.StatusLocked)
}

// MarkCommissionPaid is the terminal commission step.
func (s *Service) MarkCommissionPaid(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return s.TransitionStatus(ctx, saleID, sale.StatusCommissionPaid)
}

// MarkVoided is called only by the reconciliation sweep when the external
// invoice reports VOIDED. Terminal for revenue purposes; idempotent.
func (s *Service) MarkVoided(ctx context.Context, saleID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if current.Status == sale.StatusVoided {
			return nil
		}
		from := current.Status
		current.Status = sale.StatusVoided
		current.UpdatedBy = appctx.GetActorID(ctx)
		current.Touch()
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		s.recordAudit(ctx, current.ID, audit.ActionVoided, map[string]any{"from": from})
		logger.Warn(ctx, "sale voided by reconciliation",
			"sale_id", saleID.String(), "previous_status", from)
		return nil
	})
}

// AdoptImport promotes an unallocated import into a managed sale owned by
// shopperID, issuing a fresh sale reference.
func (s *Service) AdoptImport(ctx context.Context, importID, shopperID id.ID) (*sale.Sale, error) {
	var result *sale.Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		imp, err := s.repo.GetForUpdate(ctx, importID)
		if err != nil {
			return err
		}

		actor := appctx.GetActor(ctx)
		if err := s.policy.CanLink(actor, shopperID); err != nil {
			return err
		}

		ref, err := s.refs.Next(ctx)
		if err != nil {
			return err
		}
		if err := imp.Adopt(ref, shopperID); err != nil {
			return err
		}
		imp.UpdatedBy = appctx.GetActorID(ctx)
		imp.Touch()
		if err := s.repo.Update(ctx, imp); err != nil {
			return err
		}

		s.recordAudit(ctx, imp.ID, audit.ActionAdoptImport, map[string]any{
			"sale_reference": ref,
			"shopper_id":     shopperID.String(),
		})
		result = imp
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "import adopted",
		"sale_id", result.ID.String(), "sale_reference", result.SaleReference)
	return result, nil
}

// DismissImport hides an import from the allocation queue.
func (s *Service) DismissImport(ctx context.Context, importID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		imp, err := s.repo.GetForUpdate(ctx, importID)
		if err != nil {
			return err
		}
		if imp.Dismissed {
			return nil
		}
		if err := imp.Dismiss(); err != nil {
			return err
		}
		imp.UpdatedBy = appctx.GetActorID(ctx)
		imp.Touch()
		if err := s.repo.Update(ctx, imp); err != nil {
			return err
		}
		s.recordAudit(ctx, imp.ID, audit.ActionDismissImport, nil)
		return nil
	})
}

// recordAudit writes the change entry; failures are logged, never fatal.
func (s *Service) recordAudit(ctx context.Context, saleID id.ID, action string, payload any) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.RecordChange(ctx, "sale", saleID, action, payload); err != nil {
		logger.Warn(ctx, "audit record failed",
			"sale_id", saleID.String(), "action", action, "error", err)
	}
}
