package xero

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// msDate handles Xero's legacy /Date(1695168000000+0000)/ timestamps as
// well as plain ISO 8601 strings.
type msDate struct {
	time.Time
}

var msDatePattern = regexp.MustCompile(`^/Date\((-?\d+)(?:[+-]\d{4})?\)/$`)

func (d *msDate) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" || raw == `""` {
		return nil
	}
	s, err := strconv.Unquote(raw)
	if err != nil {
		return fmt.Errorf("invalid date value %s", raw)
	}

	if m := msDatePattern.FindStringSubmatch(s); m != nil {
		millis, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ms date %q", s)
		}
		d.Time = time.UnixMilli(millis).UTC()
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized date format %q", s)
}

func (d *msDate) timePtr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type wireInvoice struct {
	InvoiceID       string          `json:"InvoiceID"`
	InvoiceNumber   string          `json:"InvoiceNumber"`
	Status          string          `json:"Status"`
	CurrencyCode    string          `json:"CurrencyCode"`
	Total           decimal.Decimal `json:"Total"`
	AmountDue       decimal.Decimal `json:"AmountDue"`
	DueDate         *msDate         `json:"DueDate"`
	FullyPaidOnDate *msDate         `json:"FullyPaidOnDate"`
}

type invoicesResponse struct {
	Invoices []wireInvoice `json:"Invoices"`
}

type apiErrorResponse struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
	Detail  string `json:"Detail"`
}
