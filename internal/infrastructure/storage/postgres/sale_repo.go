package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"club19/internal/core/apperror"
	"club19/internal/core/id"
	"club19/internal/domain/sale"
)

const saleTable = "sales"

// Compile-time check against the domain port.
var _ sale.Repository = (*SaleRepo)(nil)

// SaleRepo is the PostgreSQL sale repository. Writes are compare-and-swap
// against the version column; the row carries linked invoices as JSONB.
type SaleRepo struct {
	txManager *TxManager
	cols      []string
}

// NewSaleRepo creates the sale repository.
func NewSaleRepo(txManager *TxManager) *SaleRepo {
	return &SaleRepo{
		txManager: txManager,
		cols:      ExtractDBColumns[sale.Sale](),
	}
}

func (r *SaleRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *SaleRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.cols...).From(saleTable)
}

// Create inserts a new sale row using its "db" tags.
func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	data := StructToMap(s)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found on sale")
	}

	q := r.builder().Insert(saleTable).SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// GetByID retrieves a sale by ID.
func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": saleID}).Limit(1), saleID.String())
}

// GetForUpdate retrieves a sale by ID with a row lock. Must run inside a
// transaction; the lock serializes concurrent link/unlink/transition calls
// on the same sale.
func (r *SaleRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": saleID}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, saleID.String())
}

func (r *SaleRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*sale.Sale, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s sale.Sale
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", key)
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return &s, nil
}

// Update writes the sale with optimistic locking. The caller has already
// bumped Version via Touch; the write expects the prior version in the row
// and reports CONCURRENT_MODIFICATION on a mismatch.
func (r *SaleRepo) Update(ctx context.Context, s *sale.Sale) error {
	data := StructToMap(s)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found on sale")
	}
	delete(data, "id")
	delete(data, "version")

	expectedPrev := s.Version - 1

	q := r.builder().
		Update(saleTable).
		SetMap(data).
		Set("version", s.Version).
		Where(squirrel.Eq{"id": s.ID}).
		Where(squirrel.Eq{"version": expectedPrev})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("sale", s.ID.String())
	}
	return nil
}

// List retrieves sales matching the filter, newest first.
func (r *SaleRepo) List(ctx context.Context, filter sale.ListFilter) ([]sale.Sale, error) {
	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deleted_at": nil})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Source != nil {
		q = q.Where(squirrel.Eq{"source": *filter.Source})
	}
	if filter.ShopperID != nil {
		q = q.Where(squirrel.Eq{"shopper_id": *filter.ShopperID})
	}
	if filter.NeedsAllocation != nil {
		q = q.Where(squirrel.Eq{"needs_allocation": *filter.NeedsAllocation})
	}

	q = q.OrderBy("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return r.selectMany(ctx, q)
}

// FindByExternalInvoiceID returns every non-deleted sale holding the
// external invoice as primary or in its linked set. Supports the
// single-allocation invariant, so it must see imports and sales alike.
func (r *SaleRepo) FindByExternalInvoiceID(ctx context.Context, invoiceID string) ([]sale.Sale, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deleted_at": nil}).
		Where(squirrel.Or{
			squirrel.Eq{"xero_invoice_id": invoiceID},
			squirrel.Expr("linked_invoices @> ?::jsonb", fmt.Sprintf(`[{"externalInvoiceId":%q}]`, invoiceID)),
		})

	return r.selectMany(ctx, q)
}

// FindRestorableImport returns the soft-deleted import row for the
// external invoice, or nil when none exists.
func (r *SaleRepo) FindRestorableImport(ctx context.Context, invoiceID string) (*sale.Sale, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"source": sale.SourceXeroImport}).
		Where(squirrel.Eq{"xero_invoice_id": invoiceID}).
		Where(squirrel.NotEq{"deleted_at": nil}).
		OrderBy("updated_at DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s sale.Sale
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find restorable import: %w", err)
	}
	return &s, nil
}

// ListAwaitingPayment returns the reconciliation sweep's working set.
func (r *SaleRepo) ListAwaitingPayment(ctx context.Context) ([]sale.Sale, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"status": sale.StatusInvoiced}).
		Where(squirrel.Eq{"error_flag": false}).
		Where(squirrel.Eq{"deleted_at": nil}).
		Where(squirrel.NotEq{"xero_invoice_id": ""}).
		OrderBy("created_at ASC")

	return r.selectMany(ctx, q)
}

// ListActiveForIntegrity returns every live managed sale for the
// integrity sweep. Unallocated imports are excluded; they carry no
// economics to check yet.
func (r *SaleRepo) ListActiveForIntegrity(ctx context.Context) ([]sale.Sale, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deleted_at": nil}).
		Where(squirrel.NotEq{"status": sale.StatusVoided}).
		Where(squirrel.NotEq{"source": sale.SourceXeroImport}).
		OrderBy("created_at ASC")

	return r.selectMany(ctx, q)
}

func (r *SaleRepo) selectMany(ctx context.Context, q squirrel.SelectBuilder) ([]sale.Sale, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []sale.Sale
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return items, nil
}
