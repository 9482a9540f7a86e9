// Package audit defines the change-trail port. Every link, unlink, relink
// and status transition records an entry; failures to record never fail
// the business operation.
package audit

import (
	"context"

	"club19/internal/core/id"
)

// Actions recorded against sales.
const (
	ActionLinkInvoice    = "link_invoice"
	ActionUnlinkInvoice  = "unlink_invoice"
	ActionRelinkPrimary  = "relink_primary"
	ActionFixVat         = "fix_vat"
	ActionRecalcMargins  = "recalculate_margins"
	ActionTransition     = "status_transition"
	ActionPaymentApplied = "payment_applied"
	ActionVoided         = "voided"
	ActionAdoptImport    = "adopt_import"
	ActionDismissImport  = "dismiss_import"
)

// Recorder persists change entries. Payload is serialized to JSON by the
// implementation and may be compressed at rest.
type Recorder interface {
	RecordChange(ctx context.Context, entityType string, entityID id.ID, action string, payload any) error
}

// NopRecorder discards entries (for tests).
type NopRecorder struct{}

func (NopRecorder) RecordChange(context.Context, string, id.ID, string, any) error { return nil }
