package handler

import (
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CreditHandler serves customer credit lines and the orders that consume them
type CreditHandler struct {
	BaseHandler
	credit *financeapp.CreditService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(credit *financeapp.CreditService) *CreditHandler {
	return &CreditHandler{credit: credit}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *CreditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	customers := rg.Group("/customers")
	customers.POST("", h.CreateCustomer)
	customers.GET("/:id/credit", h.GetCredit)
	customers.GET("/:id/credit/exposure", h.Exposure)
	customers.PUT("/:id/credit/limit", h.SetLimit)
	customers.POST("/:id/credit/consume", h.Consume)
	customers.POST("/:id/credit/restore", h.Restore)
	customers.POST("/:id/credit/recalculate", h.Recalculate)

	orders := rg.Group("/orders")
	orders.POST("", h.RegisterOrder)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/cancel", h.CancelOrder)
}

// CreateCustomer handles POST /customers
func (h *CreditHandler) CreateCustomer(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.CreateCustomerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	customer, err := h.credit.CreateCustomer(c.Request.Context(), tenantID, financeapp.CreateCustomerRequest{
		Name:        req.Name,
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, customer)
}

// GetCredit handles GET /customers/:id/credit
func (h *CreditHandler) GetCredit(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	credit, err := h.credit.GetCredit(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, credit)
}

// Exposure handles GET /customers/:id/credit/exposure
func (h *CreditHandler) Exposure(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	exposure, err := h.credit.Exposure(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, exposure)
}

// Recalculate handles POST /customers/:id/credit/recalculate
func (h *CreditHandler) Recalculate(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	exposure, err := h.credit.Recalculate(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, exposure)
}

// SetLimit handles PUT /customers/:id/credit/limit
func (h *CreditHandler) SetLimit(c *gin.Context) {
	h.adjust(c, h.credit.SetCreditLimit)
}

// Consume handles POST /customers/:id/credit/consume
func (h *CreditHandler) Consume(c *gin.Context) {
	h.adjust(c, h.credit.Consume)
}

// Restore handles POST /customers/:id/credit/restore
func (h *CreditHandler) Restore(c *gin.Context) {
	h.adjust(c, h.credit.Restore)
}

func (h *CreditHandler) adjust(c *gin.Context, apply creditAdjuster) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CreditAmountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	credit, err := apply(c.Request.Context(), tenantID, id, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, credit)
}

// RegisterOrder handles POST /orders
func (h *CreditHandler) RegisterOrder(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.RegisterOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.credit.RegisterOrder(c.Request.Context(), tenantID, req.CustomerID, req.Total)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// GetOrder handles GET /orders/:id
func (h *CreditHandler) GetOrder(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.credit.GetOrder(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// CancelOrder handles POST /orders/:id/cancel
func (h *CreditHandler) CancelOrder(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.credit.CancelOrder(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
