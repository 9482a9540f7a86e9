package economics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club19/internal/core/apperror"
	"club19/internal/core/types"
	"club19/internal/domain/commission"
	"club19/internal/domain/theme"
)

func testCalculator() *Calculator {
	return NewCalculator(theme.NewRegistry(theme.DefaultMappings()))
}

func TestCalculateVat_StandardRate(t *testing.T) {
	calc := testCalculator()

	got, err := calc.CalculateVat("standard", types.MustMoney("100.00"))
	require.NoError(t, err)

	assert.True(t, got.SaleAmountExVat.Equal(types.MustMoney("100.00")), "ex VAT: %s", got.SaleAmountExVat)
	assert.True(t, got.SaleAmountIncVat.Equal(types.MustMoney("120.00")), "inc VAT: %s", got.SaleAmountIncVat)
	assert.True(t, got.VatAmount.Equal(types.MustMoney("20.00")), "VAT: %s", got.VatAmount)
}

func TestCalculateVat_ZeroRate(t *testing.T) {
	calc := testCalculator()

	got, err := calc.CalculateVat("margin_scheme", types.MustMoney("450.50"))
	require.NoError(t, err)

	assert.True(t, got.SaleAmountIncVat.Equal(got.SaleAmountExVat))
	assert.True(t, got.VatAmount.IsZero())
}

func TestCalculateVat_UnknownTheme(t *testing.T) {
	calc := testCalculator()

	_, err := calc.CalculateVat("no-such-theme", types.MustMoney("100"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownTheme))
}

func TestCalculateVatFromInc(t *testing.T) {
	calc := testCalculator()

	tests := []struct {
		name   string
		theme  string
		inc    string
		wantEx string
	}{
		{"standard rate", "standard", "120.00", "100.00"},
		{"standard rate rounding", "standard", "100.00", "83.33"},
		{"zero rate passthrough", "zero_rated", "68000.00", "68000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.CalculateVatFromInc(tt.theme, types.MustMoney(tt.inc))
			require.NoError(t, err)
			assert.True(t, got.SaleAmountExVat.Equal(types.MustMoney(tt.wantEx)),
				"ex VAT mismatch: want %s got %s", tt.wantEx, got.SaleAmountExVat)
		})
	}
}

func TestFixZeroRatedVatBug(t *testing.T) {
	calc := testCalculator()

	t.Run("detects and fixes historic defect", func(t *testing.T) {
		got, applied, err := calc.FixZeroRatedVatBug("margin_scheme",
			types.MustMoney("56666.67"), types.MustMoney("68000.00"))
		require.NoError(t, err)
		assert.True(t, applied)
		assert.True(t, got.SaleAmountExVat.Equal(types.MustMoney("68000.00")))
		assert.True(t, got.SaleAmountIncVat.Equal(types.MustMoney("68000.00")))
		assert.True(t, got.VatAmount.IsZero())
	})

	t.Run("leaves consistent amounts alone", func(t *testing.T) {
		got, applied, err := calc.FixZeroRatedVatBug("margin_scheme",
			types.MustMoney("68000.00"), types.MustMoney("68000.00"))
		require.NoError(t, err)
		assert.False(t, applied)
		assert.True(t, got.SaleAmountExVat.Equal(types.MustMoney("68000.00")))
	})

	t.Run("never fires on a standard-rated theme", func(t *testing.T) {
		_, applied, err := calc.FixZeroRatedVatBug("standard",
			types.MustMoney("100.00"), types.MustMoney("120.00"))
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("ignores amounts outside the epsilon", func(t *testing.T) {
		_, applied, err := calc.FixZeroRatedVatBug("margin_scheme",
			types.MustMoney("50000.00"), types.MustMoney("68000.00"))
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("unknown theme is fail-closed", func(t *testing.T) {
		_, _, err := calc.FixZeroRatedVatBug("missing", types.MustMoney("1"), types.MustMoney("1"))
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeUnknownTheme))
	})
}

func TestCalculateMargins(t *testing.T) {
	got := CalculateMargins(MarginInput{
		SaleAmountExVat:      types.MustMoney("1000"),
		BuyPrice:             types.MustMoney("600"),
		ShippingCost:         types.MustMoney("20"),
		CardFees:             types.MustMoney("10"),
		DirectCosts:          types.MustMoney("5"),
		IntroducerCommission: types.MustMoney("15"),
	})

	assert.True(t, got.GrossMargin.Equal(types.MustMoney("400")), "gross: %s", got.GrossMargin)
	assert.True(t, got.CommissionableMargin.Equal(types.MustMoney("350")), "commissionable: %s", got.CommissionableMargin)
	assert.True(t, got.Breakdown.Revenue.Equal(types.MustMoney("1000")))
}

func TestCalculateMargins_NegativeMargin(t *testing.T) {
	got := CalculateMargins(MarginInput{
		SaleAmountExVat: types.MustMoney("500"),
		BuyPrice:        types.MustMoney("600"),
	})

	assert.True(t, got.GrossMargin.Equal(types.MustMoney("-100")))
	assert.True(t, got.CommissionableMargin.Equal(types.MustMoney("-100")))
}

func TestAddCurrency_NoDrift(t *testing.T) {
	// Repeated linking additions must stay exactly representable at 2dp.
	total := types.Zero()
	for i := 0; i < 1000; i++ {
		total = types.AddCurrency(total, types.MustMoney("0.10"))
	}
	assert.True(t, total.Equal(types.MustMoney("100.00")), "total: %s", total)
}

func TestCommissionBands(t *testing.T) {
	max := types.MustMoney("1000")
	bands := []commission.Band{
		{BandType: "standard", MinThreshold: types.MustMoney("0"), MaxThreshold: &max, CommissionPercent: types.MustMoney("10")},
		{BandType: "standard", MinThreshold: types.MustMoney("1000"), CommissionPercent: types.MustMoney("15")},
	}

	t.Run("resolves the containing band", func(t *testing.T) {
		band, ok := ResolveCommissionBand(bands, types.MustMoney("350"))
		require.True(t, ok)
		assert.True(t, band.CommissionPercent.Equal(types.MustMoney("10")))

		band, ok = ResolveCommissionBand(bands, types.MustMoney("1000"))
		require.True(t, ok)
		assert.True(t, band.CommissionPercent.Equal(types.MustMoney("15")))
	})

	t.Run("computes commission amount", func(t *testing.T) {
		band, _ := ResolveCommissionBand(bands, types.MustMoney("350"))
		got := CalculateCommission(band, types.MustMoney("350"))
		assert.True(t, got.Equal(types.MustMoney("35.00")), "commission: %s", got)
	})

	t.Run("negative margin earns nothing", func(t *testing.T) {
		got := CalculateCommission(&bands[0], types.MustMoney("-50"))
		assert.True(t, got.IsZero())
	})

	t.Run("no matching band", func(t *testing.T) {
		_, ok := ResolveCommissionBand(bands, types.MustMoney("-1"))
		assert.False(t, ok)
	})
}
