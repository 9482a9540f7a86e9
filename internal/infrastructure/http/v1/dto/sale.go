package dto

import (
	"club19/internal/domain/linkage"
	"club19/internal/domain/sale"
)

// LinkRequest carries the import row to link.
type LinkRequest struct {
	ImportID string `json:"importId" binding:"required"`
}

// UnlinkRequest names the external invoice to detach.
type UnlinkRequest struct {
	ExternalInvoiceID string `json:"externalInvoiceId" binding:"required"`
}

// RelinkRequest carries the import row that replaces the primary invoice.
type RelinkRequest struct {
	ImportID string `json:"importId" binding:"required"`
}

// TransitionRequest carries the target lifecycle status.
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdoptRequest assigns the adopted sale to a shopper.
type AdoptRequest struct {
	ShopperID string `json:"shopperId" binding:"required"`
}

// RecalculateRequest selects sales for margin recalculation.
// An empty ID list means every live managed sale.
type RecalculateRequest struct {
	SaleIDs []string `json:"saleIds"`
	DryRun  bool     `json:"dryRun"`
}

// ListSalesQuery holds list filters.
type ListSalesQuery struct {
	Status          string `form:"status"`
	Source          string `form:"source"`
	ShopperID       string `form:"shopperId"`
	NeedsAllocation *bool  `form:"needsAllocation"`
	Limit           int    `form:"limit,default=50"`
	Offset          int    `form:"offset"`
}

// SaleListResponse is the paginated sale list.
type SaleListResponse struct {
	Items []sale.Sale `json:"items"`
	Meta  ListMeta    `json:"meta"`
}

// RecalculateResponse summarizes a margin recalculation run.
type RecalculateResponse struct {
	Processed int                    `json:"processed"`
	Updated   int                    `json:"updated"`
	Skipped   int                    `json:"skipped"`
	DryRun    bool                   `json:"dryRun"`
	Changes   []linkage.MarginChange `json:"changes,omitempty"`
}
