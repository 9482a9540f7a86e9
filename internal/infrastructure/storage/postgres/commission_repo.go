package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"club19/internal/domain/commission"
)

const commissionBandTable = "commission_bands"

var _ commission.Repository = (*CommissionRepo)(nil)

// CommissionRepo loads commission bands, ordered by threshold so band
// resolution can walk them in ascending order.
type CommissionRepo struct {
	txManager *TxManager
	cols      []string
}

// NewCommissionRepo creates the commission band repository.
func NewCommissionRepo(txManager *TxManager) *CommissionRepo {
	return &CommissionRepo{
		txManager: txManager,
		cols:      ExtractDBColumns[commission.Band](),
	}
}

// ListByType returns the bands of the given type, lowest threshold first.
func (r *CommissionRepo) ListByType(ctx context.Context, bandType string) ([]commission.Band, error) {
	q := squirrel.StatementBuilder.
		PlaceholderFormat(squirrel.Dollar).
		Select(r.cols...).
		From(commissionBandTable).
		Where(squirrel.Eq{"band_type": bandType}).
		OrderBy("min_threshold ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []commission.Band
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list commission bands: %w", err)
	}
	return items, nil
}
