package handlers

import (
	"github.com/gin-gonic/gin"

	"club19/internal/core/apperror"
	"club19/internal/core/id"
	"club19/internal/domain/linkage"
	"club19/internal/infrastructure/http/v1/dto"
)

// LinkageHandler serves invoice linkage and economics endpoints.
type LinkageHandler struct {
	*BaseHandler
	linkage *linkage.Service
}

// NewLinkageHandler creates the linkage handler.
func NewLinkageHandler(base *BaseHandler, svc *linkage.Service) *LinkageHandler {
	return &LinkageHandler{BaseHandler: base, linkage: svc}
}

// Link attaches an imported invoice to a sale.
// POST /api/v1/sales/:id/link
func (h *LinkageHandler) Link(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.LinkRequest
	if !h.BindJSON(c, &req) {
		return
	}
	importID, err := id.Parse(req.ImportID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid import id"))
		return
	}

	s, err := h.linkage.LinkInvoice(c.Request.Context(), saleID, importID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Unlink detaches a linked invoice and restores the import row.
// POST /api/v1/sales/:id/unlink
func (h *LinkageHandler) Unlink(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UnlinkRequest
	if !h.BindJSON(c, &req) {
		return
	}

	s, err := h.linkage.UnlinkInvoice(c.Request.Context(), saleID, req.ExternalInvoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Relink replaces the sale's primary invoice reference.
// POST /api/v1/sales/:id/relink
func (h *LinkageHandler) Relink(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.RelinkRequest
	if !h.BindJSON(c, &req) {
		return
	}
	importID, err := id.Parse(req.ImportID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid import id"))
		return
	}

	s, err := h.linkage.RelinkPrimaryInvoice(c.Request.Context(), saleID, importID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// FixVat applies the zero-rated VAT correction to a sale.
// POST /api/v1/sales/:id/fix-vat
func (h *LinkageHandler) FixVat(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	amounts, err := h.linkage.FixVat(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, amounts)
}

// Recalculate re-derives margins for the selected sales.
// POST /api/v1/sales/recalculate-margins
func (h *LinkageHandler) Recalculate(c *gin.Context) {
	var req dto.RecalculateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	saleIDs := make([]id.ID, 0, len(req.SaleIDs))
	for _, raw := range req.SaleIDs {
		parsed, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid sale id").WithDetail("value", raw))
			return
		}
		saleIDs = append(saleIDs, parsed)
	}

	summary, err := h.linkage.RecalculateMargins(c.Request.Context(), saleIDs, req.DryRun)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.RecalculateResponse{
		Processed: summary.Processed,
		Updated:   summary.Updated,
		Skipped:   summary.Skipped,
		DryRun:    req.DryRun,
		Changes:   summary.Changes,
	})
}
