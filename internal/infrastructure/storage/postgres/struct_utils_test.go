package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"club19/internal/core/id"
	"club19/internal/domain/sale"
)

func TestExtractDBColumnsIncludesEmbedded(t *testing.T) {
	cols := ExtractDBColumns[sale.Sale]()

	assert.Contains(t, cols, "id")
	assert.Contains(t, cols, "version")
	assert.Contains(t, cols, "sale_reference")
	assert.Contains(t, cols, "linked_invoices")
	assert.Contains(t, cols, "commissionable_margin")
}

func TestStructToMapUsesDBTags(t *testing.T) {
	s := sale.NewSale("C19-0007", id.Nil(), "GBP")
	m := StructToMap(s)

	assert.Equal(t, "C19-0007", m["sale_reference"])
	assert.Equal(t, "GBP", m["currency"])
	assert.Equal(t, 1, m["version"])
	_, hasID := m["id"]
	assert.True(t, hasID)
}
