package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"club19/internal/core/apperror"
	"club19/internal/core/id"
	"club19/internal/domain/errorlog"
)

const errorLogTable = "sale_error_log"

var _ errorlog.Repository = (*ErrorLogRepo)(nil)

// ErrorLogRepo is the PostgreSQL error log repository.
type ErrorLogRepo struct {
	txManager *TxManager
	cols      []string
}

// NewErrorLogRepo creates the error log repository.
func NewErrorLogRepo(txManager *TxManager) *ErrorLogRepo {
	return &ErrorLogRepo{
		txManager: txManager,
		cols:      ExtractDBColumns[errorlog.ErrorRecord](),
	}
}

func (r *ErrorLogRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Record appends a new error record.
func (r *ErrorLogRepo) Record(ctx context.Context, rec *errorlog.ErrorRecord) error {
	if err := rec.Validate(ctx); err != nil {
		return err
	}

	data := StructToMap(rec)
	q := r.builder().Insert(errorLogTable).SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert error record: %w", err)
	}
	return nil
}

// UpsertWarning refreshes the open record with the same (sale, warning type)
// key when one exists, otherwise inserts a new record. Returns true when a
// new record was created.
func (r *ErrorLogRepo) UpsertWarning(ctx context.Context, rec *errorlog.ErrorRecord) (bool, error) {
	if err := rec.Validate(ctx); err != nil {
		return false, err
	}
	if rec.WarningType == "" {
		return false, fmt.Errorf("warning type is required for upsert")
	}

	upd := r.builder().
		Update(errorLogTable).
		Set("severity", rec.Severity).
		Set("source", rec.Source).
		Set("messages", rec.Messages).
		Set("timestamp", rec.Timestamp).
		Where(squirrel.Eq{"warning_type": rec.WarningType}).
		Where(squirrel.Eq{"resolved": false})
	if rec.SaleID != nil {
		upd = upd.Where(squirrel.Eq{"sale_id": *rec.SaleID})
	} else {
		upd = upd.Where(squirrel.Eq{"sale_id": nil})
	}

	sql, args, err := upd.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("refresh warning: %w", err)
	}
	if result.RowsAffected() > 0 {
		return false, nil
	}

	if err := r.Record(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// ListOpenBySale returns unresolved records for a sale, newest first.
func (r *ErrorLogRepo) ListOpenBySale(ctx context.Context, saleID id.ID) ([]errorlog.ErrorRecord, error) {
	q := r.builder().
		Select(r.cols...).
		From(errorLogTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		Where(squirrel.Eq{"resolved": false}).
		OrderBy("timestamp DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []errorlog.ErrorRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list error records: %w", err)
	}
	return items, nil
}

// Resolve marks a record as reviewed.
func (r *ErrorLogRepo) Resolve(ctx context.Context, recordID id.ID, resolvedBy string) error {
	now := time.Now().UTC()

	q := r.builder().
		Update(errorLogTable).
		Set("resolved", true).
		Set("resolved_by", resolvedBy).
		Set("resolved_at", now).
		Where(squirrel.Eq{"id": recordID}).
		Where(squirrel.Eq{"resolved": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("resolve error record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("error record", recordID.String())
	}
	return nil
}
