package handlers

import (
	"github.com/gin-gonic/gin"

	"club19/internal/domain/integrity"
	"club19/internal/domain/recon"
)

// SweepHandler triggers the reconciliation and integrity sweeps on demand.
// The worker runs the same sweeps on a schedule.
type SweepHandler struct {
	*BaseHandler
	recon     *recon.Sweep
	integrity *integrity.Sweep
}

// NewSweepHandler creates the sweep handler.
func NewSweepHandler(base *BaseHandler, reconSweep *recon.Sweep, integritySweep *integrity.Sweep) *SweepHandler {
	return &SweepHandler{BaseHandler: base, recon: reconSweep, integrity: integritySweep}
}

// ReconcilePayments runs the payment reconciliation sweep.
// POST /api/v1/sweeps/reconcile-payments
func (h *SweepHandler) ReconcilePayments(c *gin.Context) {
	summary, err := h.recon.Run(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

// Integrity runs the integrity warning sweep.
// POST /api/v1/sweeps/integrity
func (h *SweepHandler) Integrity(c *gin.Context) {
	summary, err := h.integrity.Run(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}
