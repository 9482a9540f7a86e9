// Package sale holds the sale aggregate, its status machine and its
// persistence port. Economics recomputation and invoice linkage live in
// their own packages and operate on this aggregate.
package sale

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"club19/internal/core/apperror"
	"club19/internal/core/entity"
	"club19/internal/core/id"
	"club19/internal/core/types"
)

// Source distinguishes where a sale record came from.
type Source string

const (
	// SourceAtelier is a sale created in-house by a shopper.
	SourceAtelier Source = "atelier"
	// SourceXeroImport is an unallocated invoice pulled from the gateway.
	SourceXeroImport Source = "xero_import"
	// SourceAdopted is a former import promoted into a managed sale.
	SourceAdopted Source = "adopted"
)

// Status is the sale lifecycle state.
type Status string

const (
	StatusActive         Status = "active"
	StatusOngoing        Status = "ongoing"
	StatusInvoiced       Status = "invoiced"
	StatusPaid           Status = "paid"
	StatusLocked         Status = "locked"
	StatusCommissionPaid Status = "commission_paid"
	StatusVoided         Status = "voided"
)

// transitions is the allowed edge set of the status machine. Voided is only
// reachable through the reconciliation sweep, never through the interactive
// transition operation. Locked is terminal except for the commission payment
// step; there is no unlock edge.
var transitions = map[Status][]Status{
	StatusActive:   {StatusOngoing, StatusInvoiced, StatusPaid},
	StatusOngoing:  {StatusActive},
	StatusInvoiced: {StatusPaid, StatusActive},
	StatusPaid:     {StatusLocked, StatusInvoiced},
	StatusLocked:   {StatusCommissionPaid},
}

// CanTransition reports whether from -> to is an allowed interactive edge.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// LinkedInvoice is one external invoice attached to a sale beyond the
// primary one, e.g. a deposit or balance payment. Stored as JSONB on the
// sale row. Immutable once appended except by explicit unlink.
type LinkedInvoice struct {
	ExternalInvoiceID     string      `json:"externalInvoiceId"`
	ExternalInvoiceNumber string      `json:"externalInvoiceNumber"`
	AmountIncVat          types.Money `json:"amountIncVat"`
	Currency              string      `json:"currency"`
	InvoiceDate           *time.Time  `json:"invoiceDate,omitempty"`
	LinkedAt              time.Time   `json:"linkedAt"`
	LinkedBy              string      `json:"linkedBy,omitempty"`
}

// LinkedInvoiceList implements JSONB persistence for the linkage list.
type LinkedInvoiceList []LinkedInvoice

// Value implements driver.Valuer.
func (l LinkedInvoiceList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *LinkedInvoiceList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into LinkedInvoiceList", src)
	}
}

// Contains reports whether the list already holds the given external id.
func (l LinkedInvoiceList) Contains(invoiceID string) bool {
	for _, li := range l {
		if li.ExternalInvoiceID == invoiceID {
			return true
		}
	}
	return false
}

// Total sums the linked amounts with per-addition rounding.
func (l LinkedInvoiceList) Total() types.Money {
	total := types.Zero()
	for _, li := range l {
		total = types.AddCurrency(total, li.AmountIncVat)
	}
	return total
}

// Sale is the central aggregate: item economics, party references, invoice
// linkage and lifecycle state. All money fields are VAT-disciplined amounts
// in the sale currency, rounded to 2 decimal places.
type Sale struct {
	entity.BaseDocument

	SaleReference string `db:"sale_reference" json:"saleReference"`
	Source        Source `db:"source" json:"source"`
	Status        Status `db:"status" json:"status"`

	// Parties are weak references to party records owned elsewhere.
	// ShopperID owns the sale for authorization purposes.
	ShopperID    id.ID  `db:"shopper_id" json:"shopperId"`
	BuyerID      *id.ID `db:"buyer_id" json:"buyerId,omitempty"`
	SupplierID   *id.ID `db:"supplier_id" json:"supplierId,omitempty"`
	IntroducerID *id.ID `db:"introducer_id" json:"introducerId,omitempty"`

	// Item.
	ItemTitle string     `db:"item_title" json:"itemTitle"`
	Brand     string     `db:"brand" json:"brand"`
	Category  string     `db:"category" json:"category"`
	Quantity  int        `db:"quantity" json:"quantity"`
	SaleDate  *time.Time `db:"sale_date" json:"saleDate,omitempty"`

	// Economics. BrandingTheme selects the VAT treatment.
	Currency             string      `db:"currency" json:"currency"`
	BrandingTheme        string      `db:"branding_theme" json:"brandingTheme"`
	SaleAmountIncVat     types.Money `db:"sale_amount_inc_vat" json:"saleAmountIncVat"`
	SaleAmountExVat      types.Money `db:"sale_amount_ex_vat" json:"saleAmountExVat"`
	VatAmount            types.Money `db:"vat_amount" json:"vatAmount"`
	BuyPrice             types.Money `db:"buy_price" json:"buyPrice"`
	CardFees             types.Money `db:"card_fees" json:"cardFees"`
	ShippingCost         types.Money `db:"shipping_cost" json:"shippingCost"`
	DirectCosts          types.Money `db:"direct_costs" json:"directCosts"`
	IntroducerCommission types.Money `db:"introducer_commission" json:"introducerCommission"`
	GrossMargin          types.Money `db:"gross_margin" json:"grossMargin"`
	CommissionableMargin types.Money `db:"commissionable_margin" json:"commissionableMargin"`
	CommissionAmount     types.Money `db:"commission_amount" json:"commissionAmount"`

	// Primary external invoice linkage.
	XeroInvoiceID     string      `db:"xero_invoice_id" json:"xeroInvoiceId,omitempty"`
	XeroInvoiceNumber string      `db:"xero_invoice_number" json:"xeroInvoiceNumber,omitempty"`
	XeroInvoiceURL    string      `db:"xero_invoice_url" json:"xeroInvoiceUrl,omitempty"`
	InvoiceStatus     string      `db:"invoice_status" json:"invoiceStatus,omitempty"`
	InvoiceDueDate    *time.Time  `db:"invoice_due_date" json:"invoiceDueDate,omitempty"`
	InvoicePaidDate   *time.Time  `db:"invoice_paid_date" json:"invoicePaidDate,omitempty"`
	XeroPaymentDate   *time.Time  `db:"xero_payment_date" json:"xeroPaymentDate,omitempty"`
	AmountDue         types.Money `db:"amount_due" json:"amountDue"`

	// Additional linked invoices beyond the primary one.
	LinkedInvoices LinkedInvoiceList `db:"linked_invoices" json:"linkedInvoices"`

	// Completion stamp set by the completeness-gated transition.
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CompletedBy string     `db:"completed_by" json:"completedBy,omitempty"`

	// Import lifecycle. NeedsAllocation marks an unclaimed import row;
	// Dismissed hides it from the allocation queue without deleting it.
	NeedsAllocation bool       `db:"needs_allocation" json:"needsAllocation"`
	Dismissed       bool       `db:"dismissed" json:"dismissed"`
	ErrorFlag       bool       `db:"error_flag" json:"errorFlag"`
	DeletedAt       *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`

	// Supplier documentation and authenticity inputs.
	ReceiptReference     string `db:"receipt_reference" json:"receiptReference,omitempty"`
	AuthenticityVerified bool   `db:"authenticity_verified" json:"authenticityVerified"`

	InternalNotes string `db:"internal_notes" json:"internalNotes,omitempty"`
}

// NewSale creates an atelier sale in the initial state.
func NewSale(reference string, shopperID id.ID, currency string) *Sale {
	s := &Sale{
		SaleReference: reference,
		Source:        SourceAtelier,
		Status:        StatusActive,
		ShopperID:     shopperID,
		Currency:      currency,
	}
	s.ID = id.New()
	s.Version = 1
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	return s
}

// NewImport creates an unallocated import row from gateway data.
func NewImport(invoiceID, invoiceNumber, currency string) *Sale {
	s := &Sale{
		Source:            SourceXeroImport,
		Status:            StatusActive,
		Currency:          currency,
		XeroInvoiceID:     invoiceID,
		XeroInvoiceNumber: invoiceNumber,
		NeedsAllocation:   true,
	}
	s.ID = id.New()
	s.Version = 1
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	return s
}

// Validate checks aggregate invariants on write.
func (s *Sale) Validate(ctx context.Context) error {
	switch s.Source {
	case SourceAtelier, SourceXeroImport, SourceAdopted:
	default:
		return apperror.NewValidation("invalid sale source").
			WithDetail("source", string(s.Source))
	}
	switch s.Status {
	case StatusActive, StatusOngoing, StatusInvoiced, StatusPaid,
		StatusLocked, StatusCommissionPaid, StatusVoided:
	default:
		return apperror.NewValidation("invalid sale status").
			WithDetail("status", string(s.Status))
	}
	if s.Currency == "" {
		return apperror.NewValidation("currency is required")
	}
	if s.BuyPrice.IsNegative() || s.CardFees.IsNegative() ||
		s.ShippingCost.IsNegative() || s.DirectCosts.IsNegative() ||
		s.IntroducerCommission.IsNegative() {
		return apperror.NewValidation("cost components cannot be negative")
	}
	return nil
}

// IsLocked reports whether the sale has entered a commission-frozen state.
func (s *Sale) IsLocked() bool {
	switch s.Status {
	case StatusLocked, StatusCommissionPaid:
		return true
	}
	return false
}

// CanMutateEconomics gates every write that changes money fields or linkage.
func (s *Sale) CanMutateEconomics() error {
	if s.IsLocked() || s.Status == StatusVoided {
		return apperror.NewSaleLocked(s.ID, string(s.Status))
	}
	if s.DeletedAt != nil {
		return apperror.NewValidation("sale is deleted").
			WithDetail("saleId", s.ID.String())
	}
	return nil
}

// HasPrimaryInvoice reports whether the sale carries a primary linkage.
func (s *Sale) HasPrimaryInvoice() bool {
	return s.XeroInvoiceID != ""
}

// IsLinkedTo reports whether invoiceID is the primary or a secondary link.
func (s *Sale) IsLinkedTo(invoiceID string) bool {
	return s.XeroInvoiceID == invoiceID || s.LinkedInvoices.Contains(invoiceID)
}

// Adopt promotes an import into a managed sale owned by shopperID.
func (s *Sale) Adopt(reference string, shopperID id.ID) error {
	if s.Source != SourceXeroImport {
		return apperror.NewInvalidSourceType(string(SourceXeroImport), string(s.Source))
	}
	if s.Dismissed {
		return apperror.NewValidation("cannot adopt a dismissed import").
			WithDetail("saleId", s.ID.String())
	}
	s.Source = SourceAdopted
	s.SaleReference = reference
	s.ShopperID = shopperID
	s.NeedsAllocation = false
	return nil
}

// Dismiss hides an import from the allocation queue.
func (s *Sale) Dismiss() error {
	if s.Source != SourceXeroImport {
		return apperror.NewInvalidSourceType(string(SourceXeroImport), string(s.Source))
	}
	s.Dismissed = true
	s.NeedsAllocation = false
	return nil
}
