package handlers

import (
	"github.com/gin-gonic/gin"

	"club19/internal/core/apperror"
	appctx "club19/internal/core/context"
	"club19/internal/core/id"
	"club19/internal/domain/completeness"
	"club19/internal/domain/sale"
	"club19/internal/infrastructure/http/v1/dto"
)

// SaleHandler serves sale read endpoints.
type SaleHandler struct {
	*BaseHandler
	repo sale.Repository
}

// NewSaleHandler creates the sale handler.
func NewSaleHandler(base *BaseHandler, repo sale.Repository) *SaleHandler {
	return &SaleHandler{BaseHandler: base, repo: repo}
}

// Get returns a single sale.
// GET /api/v1/sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	s, err := h.loadVisible(c, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// List returns sales matching the filter. Shoppers only ever see their
// own sales regardless of the filter they send.
// GET /api/v1/sales
func (h *SaleHandler) List(c *gin.Context) {
	var query dto.ListSalesQuery
	if !h.BindQuery(c, &query) {
		return
	}

	filter := sale.ListFilter{
		NeedsAllocation: query.NeedsAllocation,
		Limit:           query.Limit,
		Offset:          query.Offset,
	}
	if query.Status != "" {
		st := sale.Status(query.Status)
		filter.Status = &st
	}
	if query.Source != "" {
		src := sale.Source(query.Source)
		filter.Source = &src
	}
	if query.ShopperID != "" {
		shopperID, err := id.Parse(query.ShopperID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid shopper id"))
			return
		}
		filter.ShopperID = &shopperID
	}

	actor := appctx.GetActor(c.Request.Context())
	if actor != nil && !actor.IsPrivileged() {
		own := actor.ShopperID
		filter.ShopperID = &own
	}

	items, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.SaleListResponse{
		Items: items,
		Meta: dto.ListMeta{
			Limit:  filter.Limit,
			Offset: filter.Offset,
			Count:  len(items),
		},
	})
}

// Completeness returns the completeness assessment for a sale.
// GET /api/v1/sales/:id/completeness
func (h *SaleHandler) Completeness(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	s, err := h.loadVisible(c, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, completeness.Assess(s))
}

func (h *SaleHandler) loadVisible(c *gin.Context, saleID id.ID) (*sale.Sale, error) {
	s, err := h.repo.GetByID(c.Request.Context(), saleID)
	if err != nil {
		return nil, err
	}

	actor := appctx.GetActor(c.Request.Context())
	if actor != nil && !actor.IsPrivileged() && s.ShopperID != actor.ShopperID {
		return nil, apperror.NewForbidden("sale belongs to another shopper")
	}
	return s, nil
}
