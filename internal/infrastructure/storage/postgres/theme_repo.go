package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"club19/internal/domain/theme"
)

const themeTable = "branding_themes"

var _ theme.Repository = (*ThemeRepo)(nil)

// ThemeRepo loads branding theme mappings. The table is reference data
// maintained by seed and ops tooling, so only reads are exposed.
type ThemeRepo struct {
	txManager *TxManager
	cols      []string
}

// NewThemeRepo creates the branding theme repository.
func NewThemeRepo(txManager *TxManager) *ThemeRepo {
	return &ThemeRepo{
		txManager: txManager,
		cols:      ExtractDBColumns[theme.Mapping](),
	}
}

// ListAll returns every theme mapping.
func (r *ThemeRepo) ListAll(ctx context.Context) ([]theme.Mapping, error) {
	q := squirrel.StatementBuilder.
		PlaceholderFormat(squirrel.Dollar).
		Select(r.cols...).
		From(themeTable).
		OrderBy("theme_key ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []theme.Mapping
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list branding themes: %w", err)
	}
	return items, nil
}
