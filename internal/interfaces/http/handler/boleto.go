package handler

import (
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BoletoHandler serves boletos
type BoletoHandler struct {
	BaseHandler
	boletos *financeapp.BoletoService
}

// NewBoletoHandler creates a new BoletoHandler
func NewBoletoHandler(boletos *financeapp.BoletoService) *BoletoHandler {
	return &BoletoHandler{boletos: boletos}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *BoletoHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/boletos")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/penalty", h.Penalty)
	g.POST("/:id/pay", h.MarkPaid)
	g.POST("/:id/cancel", h.Cancel)
}

// Create handles POST /boletos
func (h *BoletoHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.CreateBoletoRequest
	if !h.bindJSON(c, &req) {
		return
	}
	boleto, err := h.boletos.Create(c.Request.Context(), tenantID, financeapp.CreateBoletoRequest{
		CustomerID: req.CustomerID,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		DueDate:    req.DueDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, boleto)
}

// Get handles GET /boletos/:id
func (h *BoletoHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	boleto, err := h.boletos.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, boleto)
}

// List handles GET /boletos
func (h *BoletoHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var q dto.BoletoListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	q.Normalize()
	list, total, err := h.boletos.List(c.Request.Context(), tenantID, financeapp.BoletoListFilter{
		CustomerID: optionalUUID(q.CustomerID),
		Status:     q.Status,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, total, q.Page, q.PageSize)
}

// Penalty handles GET /boletos/:id/penalty?as_of=YYYY-MM-DD
func (h *BoletoHandler) Penalty(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q dto.PenaltyQuery
	if !h.bindQuery(c, &q) {
		return
	}
	penalty, err := h.boletos.Penalty(c.Request.Context(), tenantID, id, valueOrZero(q.AsOf))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, penalty)
}

// MarkPaid handles POST /boletos/:id/pay
func (h *BoletoHandler) MarkPaid(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.MarkBoletoPaidRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.boletos.MarkPaid(c.Request.Context(), tenantID, id, financeapp.MarkBoletoPaidRequest{
		PaidAt:        valueOrZero(req.PaidAt),
		NetAmount:     req.NetAmount,
		BankAccountID: req.BankAccountID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cancel handles POST /boletos/:id/cancel
func (h *BoletoHandler) Cancel(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	boleto, err := h.boletos.Cancel(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, boleto)
}
