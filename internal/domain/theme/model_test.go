package theme

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club19/internal/core/apperror"
	"club19/internal/core/types"
)

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry(DefaultMappings())

	m, err := reg.Resolve("standard")
	require.NoError(t, err)
	assert.Equal(t, "200", m.AccountCode)
	assert.True(t, m.ExpectedVatRate.Equal(types.MustMoney("0.20")))

	m, err = reg.Resolve("margin_scheme")
	require.NoError(t, err)
	assert.True(t, m.ExpectedVatRate.IsZero())
}

func TestRegistry_UnknownKeyFailsClosed(t *testing.T) {
	reg := NewRegistry(DefaultMappings())

	_, err := reg.Resolve("mystery_theme")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownTheme))

	// Empty key is unknown too, never defaulted.
	_, err = reg.Resolve("")
	require.Error(t, err)
}

func TestRegistry_Replace(t *testing.T) {
	reg := NewRegistry(DefaultMappings())
	reg.Replace([]Mapping{
		{ThemeKey: "custom", DisplayName: "Custom", AccountCode: "999", ExpectedVatRate: types.MustMoney("0.05")},
	})

	_, err := reg.Resolve("standard")
	require.Error(t, err)

	m, err := reg.Resolve("custom")
	require.NoError(t, err)
	assert.Equal(t, "999", m.AccountCode)
}

func TestMapping_Validate(t *testing.T) {
	valid := Mapping{ThemeKey: "standard", ExpectedVatRate: types.MustMoney("0.20")}
	require.NoError(t, valid.Validate(context.Background()))

	missingKey := Mapping{ExpectedVatRate: types.MustMoney("0.20")}
	require.Error(t, missingKey.Validate(context.Background()))

	badRate := Mapping{ThemeKey: "x", ExpectedVatRate: types.MustMoney("1.5")}
	require.Error(t, badRate.Validate(context.Background()))
}
