package sale

import (
	"context"

	"club19/internal/core/id"
)

// ListFilter narrows repository list queries.
type ListFilter struct {
	Status          *Status
	Source          *Source
	ShopperID       *id.ID
	NeedsAllocation *bool
	IncludeDeleted  bool
	Limit           int
	Offset          int
}

// Repository is the persistence port for sales. Update performs a
// compare-and-swap on the version column; a stale version yields
// CONCURRENT_MODIFICATION.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, saleID id.ID) (*Sale, error)

	// GetForUpdate reads the sale with a row lock inside the current
	// transaction. Use for read-modify-write flows.
	GetForUpdate(ctx context.Context, saleID id.ID) (*Sale, error)

	Update(ctx context.Context, s *Sale) error
	List(ctx context.Context, filter ListFilter) ([]Sale, error)

	// FindByExternalInvoiceID returns every non-deleted sale row whose
	// primary or secondary linkage carries the external id. Used to
	// enforce single allocation of an invoice.
	FindByExternalInvoiceID(ctx context.Context, invoiceID string) ([]Sale, error)

	// FindRestorableImport returns the soft-deleted import row for an
	// external invoice, if one exists, for restore after unlink.
	FindRestorableImport(ctx context.Context, invoiceID string) (*Sale, error)

	// ListAwaitingPayment returns invoiced sales with a primary linkage,
	// the working set of the payment reconciliation sweep.
	ListAwaitingPayment(ctx context.Context) ([]Sale, error)

	// ListActiveForIntegrity returns all non-deleted, non-voided sales
	// for the integrity warning sweep.
	ListActiveForIntegrity(ctx context.Context) ([]Sale, error)
}
