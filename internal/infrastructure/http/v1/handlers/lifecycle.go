package handlers

import (
	"github.com/gin-gonic/gin"

	"club19/internal/core/apperror"
	"club19/internal/core/id"
	"club19/internal/domain/lifecycle"
	"club19/internal/domain/sale"
	"club19/internal/infrastructure/http/v1/dto"
)

// LifecycleHandler serves status transitions and import triage.
type LifecycleHandler struct {
	*BaseHandler
	lifecycle *lifecycle.Service
}

// NewLifecycleHandler creates the lifecycle handler.
func NewLifecycleHandler(base *BaseHandler, svc *lifecycle.Service) *LifecycleHandler {
	return &LifecycleHandler{BaseHandler: base, lifecycle: svc}
}

// Transition moves a sale to the requested lifecycle status.
// POST /api/v1/sales/:id/status
func (h *LifecycleHandler) Transition(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	s, err := h.lifecycle.TransitionStatus(c.Request.Context(), saleID, sale.Status(req.Status))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Adopt converts an imported invoice row into a managed sale.
// POST /api/v1/imports/:id/adopt
func (h *LifecycleHandler) Adopt(c *gin.Context) {
	importID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AdoptRequest
	if !h.BindJSON(c, &req) {
		return
	}
	shopperID, err := id.Parse(req.ShopperID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid shopper id"))
		return
	}

	s, err := h.lifecycle.AdoptImport(c.Request.Context(), importID, shopperID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Dismiss marks an imported row as not needing allocation.
// POST /api/v1/imports/:id/dismiss
func (h *LifecycleHandler) Dismiss(c *gin.Context) {
	importID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.lifecycle.DismissImport(c.Request.Context(), importID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "import dismissed")
}
