package handler

import (
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CommissionHandler serves commissions and their monthly closures
type CommissionHandler struct {
	BaseHandler
	closures *financeapp.CommissionClosureService
}

// NewCommissionHandler creates a new CommissionHandler
func NewCommissionHandler(closures *financeapp.CommissionClosureService) *CommissionHandler {
	return &CommissionHandler{closures: closures}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *CommissionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/commissions", h.RecordCommission)

	g := rg.Group("/commission-closures")
	g.POST("", h.Close)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/commissions", h.ListCommissions)
	g.POST("/:id/pay", h.Pay)
	g.POST("/:id/cancel", h.Cancel)
}

// RecordCommission handles POST /commissions
func (h *CommissionHandler) RecordCommission(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.RecordCommissionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	commission, err := h.closures.RecordCommission(c.Request.Context(), tenantID, financeapp.RecordCommissionRequest{
		SellerID: req.SellerID,
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		EarnedAt: valueOrZero(req.EarnedAt),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, commission)
}

// Close handles POST /commission-closures. Sellers that cannot be closed
// are listed in the result's failures; the request still succeeds.
func (h *CommissionHandler) Close(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.CloseCommissionsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.closures.CloseCommissions(c.Request.Context(), tenantID, req.ReferenceMonth, req.SellerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Get handles GET /commission-closures/:id
func (h *CommissionHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	closure, err := h.closures.GetClosure(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, closure)
}

// List handles GET /commission-closures
func (h *CommissionHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var q dto.ClosureListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	q.Normalize()
	list, total, err := h.closures.ListClosures(c.Request.Context(), tenantID, financeapp.ClosureListFilter{
		SellerID:       optionalUUID(q.SellerID),
		ReferenceMonth: q.ReferenceMonth,
		Status:         q.Status,
		Page:           q.Page,
		PageSize:       q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, total, q.Page, q.PageSize)
}

// ListCommissions handles GET /commission-closures/:id/commissions
func (h *CommissionHandler) ListCommissions(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.closures.ListClosureCommissions(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, list)
}

// Pay handles POST /commission-closures/:id/pay
func (h *CommissionHandler) Pay(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.PayRequest
	if !h.bindJSON(c, &req) {
		return
	}
	closure, err := h.closures.PayClosure(c.Request.Context(), tenantID, id, financeapp.PayClosureRequest{
		AccountID: req.AccountID,
		PaidAt:    valueOrZero(req.PaidAt),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, closure)
}

// Cancel handles POST /commission-closures/:id/cancel
func (h *CommissionHandler) Cancel(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	closure, err := h.closures.CancelClosure(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, closure)
}
