// Package gateway defines the port to the external invoicing system.
// The OAuth lifecycle lives entirely outside the core; the sweeps only
// obtain a credential once per batch and fetch invoices with it.
package gateway

import (
	"context"
	"time"

	"club19/internal/core/types"
)

// Invoice statuses reported by the external system.
const (
	InvoiceStatusDraft      = "DRAFT"
	InvoiceStatusSubmitted  = "SUBMITTED"
	InvoiceStatusAuthorised = "AUTHORISED"
	InvoiceStatusPaid       = "PAID"
	InvoiceStatusVoided     = "VOIDED"
	InvoiceStatusDeleted    = "DELETED"
)

// Invoice is the external view of an invoice.
type Invoice struct {
	ID          string
	Number      string
	Status      string
	Currency    string
	Total       types.Money
	AmountDue   types.Money
	DueDate     *time.Time
	FullyPaidOn *time.Time
	URL         string
}

// IsPaid classifies the invoice as settled: an explicit PAID status or a
// zero amount due.
func (i Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid || i.AmountDue.IsZero()
}

// Credential is an opaque access token for one batch of gateway calls.
type Credential struct {
	AccessToken string
	TenantID    string
	ExpiresAt   time.Time
}

// CredentialSource obtains gateway credentials. A failure here is fatal for
// the whole batch; an auth failure carries the GATEWAY_AUTH code so callers
// can distinguish reconnect-required from transient outage.
type CredentialSource interface {
	Obtain(ctx context.Context) (*Credential, error)
}

// InvoiceFetcher reads invoices from the external system. Every call
// carries a bounded timeout; timeouts map to GATEWAY_UNAVAILABLE.
type InvoiceFetcher interface {
	GetInvoice(ctx context.Context, cred *Credential, invoiceID string) (*Invoice, error)
}

// Client is the full gateway surface consumed by the sweeps.
type Client interface {
	CredentialSource
	InvoiceFetcher
}
