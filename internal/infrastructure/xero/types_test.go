package xero

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club19/internal/domain/gateway"
)

func TestMsDate_LegacyFormat(t *testing.T) {
	var d msDate
	require.NoError(t, json.Unmarshal([]byte(`"/Date(1695168000000+0000)/"`), &d))
	assert.Equal(t, time.Date(2023, 9, 20, 0, 0, 0, 0, time.UTC), d.Time)
}

func TestMsDate_ISOFormats(t *testing.T) {
	cases := map[string]time.Time{
		`"2024-03-01T12:30:00Z"`: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		`"2024-03-01T12:30:00"`:  time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		`"2024-03-01"`:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		var d msDate
		require.NoError(t, json.Unmarshal([]byte(raw), &d), raw)
		assert.Equal(t, want, d.Time, raw)
	}
}

func TestMsDate_NullAndGarbage(t *testing.T) {
	var d msDate
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())
	assert.Nil(t, d.timePtr())

	require.Error(t, json.Unmarshal([]byte(`"not a date"`), &d))
}

func TestMapInvoice(t *testing.T) {
	payload := []byte(`{
		"Invoices": [{
			"InvoiceID": "inv-1",
			"InvoiceNumber": "INV-0001",
			"Status": "AUTHORISED",
			"CurrencyCode": "GBP",
			"Total": 1200.00,
			"AmountDue": 0,
			"DueDate": "/Date(1695168000000+0000)/"
		}]
	}`)

	var parsed invoicesResponse
	require.NoError(t, json.Unmarshal(payload, &parsed))
	require.Len(t, parsed.Invoices, 1)

	inv := mapInvoice(parsed.Invoices[0])
	assert.Equal(t, "inv-1", inv.ID)
	assert.Equal(t, gateway.InvoiceStatusAuthorised, inv.Status)
	assert.True(t, inv.AmountDue.IsZero())
	require.NotNil(t, inv.DueDate)
	assert.Nil(t, inv.FullyPaidOn)
	// Settled by zero balance even without an explicit PAID status.
	assert.True(t, inv.IsPaid())
	assert.Contains(t, inv.URL, "inv-1")
}
