// Package errorlog provides integrity warnings and operational error records.
// Records are written for human review; they never block an operation.
package errorlog

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"club19/internal/core/apperror"
	"club19/internal/core/id"
)

// Severity grades an error record.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Warning types emitted by the sweeps and interactive operations.
// Warnings are keyed (saleID, warningType) and upserted, so re-running a
// sweep refreshes an open warning instead of appending a duplicate.
const (
	WarningNegativeMargin    = "negative_margin"
	WarningSuspiciousMargin  = "suspicious_margin"
	WarningZeroSaleAmount    = "zero_sale_amount"
	WarningBuyExceedsSale    = "buy_exceeds_sale"
	WarningAuthenticityRisk  = "authenticity_risk"
	WarningOverdueInvoice    = "overdue_invoice"
	WarningRestoreFailed     = "import_restore_failed"
	WarningReconcileFailed   = "reconcile_item_failed"
	WarningGatewayCredential = "gateway_credentials"
)

// StringList stores an ordered list of message lines as JSONB.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// ErrorRecord is an integrity warning or operational error awaiting review.
// SaleID is nil for system-wide errors. Writes are append-only (or upserted
// by warning type); records are never contended.
type ErrorRecord struct {
	ID          id.ID      `db:"id" json:"id"`
	SaleID      *id.ID     `db:"sale_id" json:"saleId,omitempty"`
	Severity    Severity   `db:"severity" json:"severity"`
	Source      string     `db:"source" json:"source"`
	WarningType string     `db:"warning_type" json:"warningType,omitempty"`
	Messages    StringList `db:"messages" json:"messages"`
	Timestamp   time.Time  `db:"timestamp" json:"timestamp"`
	Resolved    bool       `db:"resolved" json:"resolved"`
	ResolvedBy  string     `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// New creates an error record scoped to a sale.
func New(saleID id.ID, severity Severity, source string, messages ...string) *ErrorRecord {
	sid := saleID
	return &ErrorRecord{
		ID:        id.New(),
		SaleID:    &sid,
		Severity:  severity,
		Source:    source,
		Messages:  messages,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystem creates a system-wide error record (no sale scope).
func NewSystem(severity Severity, source string, messages ...string) *ErrorRecord {
	return &ErrorRecord{
		ID:        id.New(),
		Severity:  severity,
		Source:    source,
		Messages:  messages,
		Timestamp: time.Now().UTC(),
	}
}

// WithWarningType sets the warning key used for upsert deduplication.
func (r *ErrorRecord) WithWarningType(warningType string) *ErrorRecord {
	r.WarningType = warningType
	return r
}

// Validate checks record invariants.
func (r *ErrorRecord) Validate(ctx context.Context) error {
	switch r.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return apperror.NewValidation("invalid severity").
			WithDetail("severity", string(r.Severity))
	}
	if len(r.Messages) == 0 {
		return apperror.NewValidation("at least one message is required")
	}
	return nil
}

// Recorder is the write-side port used by services and sweeps.
type Recorder interface {
	// Record appends a new error record.
	Record(ctx context.Context, rec *ErrorRecord) error

	// UpsertWarning inserts the record or refreshes the open record with the
	// same (saleID, warningType) key. Returns true when a new record was
	// created rather than refreshed.
	UpsertWarning(ctx context.Context, rec *ErrorRecord) (bool, error)
}

// Repository extends Recorder with the read/resolve side.
type Repository interface {
	Recorder

	ListOpenBySale(ctx context.Context, saleID id.ID) ([]ErrorRecord, error)
	Resolve(ctx context.Context, recordID id.ID, resolvedBy string) error
}
