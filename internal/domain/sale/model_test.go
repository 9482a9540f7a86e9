package sale

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club19/internal/core/apperror"
	"club19/internal/core/id"
	"club19/internal/core/types"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusActive, StatusOngoing},
		{StatusActive, StatusInvoiced},
		{StatusActive, StatusPaid},
		{StatusOngoing, StatusActive},
		{StatusInvoiced, StatusPaid},
		{StatusInvoiced, StatusActive},
		{StatusPaid, StatusLocked},
		{StatusPaid, StatusInvoiced},
		{StatusLocked, StatusCommissionPaid},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to Status }{
		{StatusOngoing, StatusInvoiced},
		{StatusOngoing, StatusPaid},
		{StatusActive, StatusLocked},
		{StatusInvoiced, StatusLocked},
		{StatusCommissionPaid, StatusLocked},
		{StatusCommissionPaid, StatusPaid},
		{StatusVoided, StatusActive},
		{StatusActive, StatusVoided},
		{StatusPaid, StatusActive},
		{StatusLocked, StatusPaid},
		{StatusLocked, StatusActive},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestLinkedInvoiceList_Total(t *testing.T) {
	list := LinkedInvoiceList{
		{ExternalInvoiceID: "a", AmountIncVat: types.MustMoney("100.555")},
		{ExternalInvoiceID: "b", AmountIncVat: types.MustMoney("200.01")},
	}
	// Each addend is rounded before summation.
	assert.True(t, types.EqualCurrency(types.MustMoney("300.57"), list.Total()))
	assert.True(t, list.Contains("a"))
	assert.False(t, list.Contains("c"))
}

func TestLinkedInvoiceList_JSONBRoundTrip(t *testing.T) {
	list := LinkedInvoiceList{
		{ExternalInvoiceID: "inv-1", ExternalInvoiceNumber: "INV-0001", AmountIncVat: types.MustMoney("240"), Currency: "GBP"},
	}
	raw, err := list.Value()
	require.NoError(t, err)

	var back LinkedInvoiceList
	require.NoError(t, back.Scan(raw))
	require.Len(t, back, 1)
	assert.Equal(t, "inv-1", back[0].ExternalInvoiceID)
	assert.True(t, types.EqualCurrency(types.MustMoney("240"), back[0].AmountIncVat))

	// nil list persists as an empty JSON array, not SQL NULL.
	var empty LinkedInvoiceList
	raw, err = empty.Value()
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw.([]byte)))
}

func TestCanMutateEconomics(t *testing.T) {
	s := NewSale("C19-0001", id.New(), "GBP")
	require.NoError(t, s.CanMutateEconomics())

	s.Status = StatusLocked
	err := s.CanMutateEconomics()
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSaleLocked))

	s.Status = StatusVoided
	assert.True(t, apperror.HasCode(s.CanMutateEconomics(), apperror.CodeSaleLocked))
}

func TestAdoptAndDismiss(t *testing.T) {
	imp := NewImport("inv-1", "INV-0001", "GBP")
	shopper := id.New()

	require.NoError(t, imp.Adopt("C19-0042", shopper))
	assert.Equal(t, SourceAdopted, imp.Source)
	assert.Equal(t, "C19-0042", imp.SaleReference)
	assert.Equal(t, shopper, imp.ShopperID)
	assert.False(t, imp.NeedsAllocation)

	// Adopting again fails, the source is no longer an import.
	err := imp.Adopt("C19-0043", shopper)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSourceType))

	dismissed := NewImport("inv-2", "INV-0002", "GBP")
	require.NoError(t, dismissed.Dismiss())
	assert.True(t, dismissed.Dismissed)
	err = dismissed.Adopt("C19-0044", shopper)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	s := NewSale("C19-0001", id.New(), "GBP")
	require.NoError(t, s.Validate(context.Background()))

	s.BuyPrice = types.MustMoney("-1")
	require.Error(t, s.Validate(context.Background()))

	s = NewSale("C19-0001", id.New(), "")
	require.Error(t, s.Validate(context.Background()))

	s = NewSale("C19-0001", id.New(), "GBP")
	s.Status = Status("archived")
	require.Error(t, s.Validate(context.Background()))
}

func TestSaleJSONOmitsInternalFields(t *testing.T) {
	s := NewSale("C19-0001", id.New(), "GBP")
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "C19-0001", decoded["saleReference"])
	assert.Equal(t, "active", decoded["status"])
	_, hasBuyer := decoded["buyerId"]
	assert.False(t, hasBuyer)
}
