package handler

import (
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ReceivableHandler serves receivables
type ReceivableHandler struct {
	BaseHandler
	receivables *financeapp.ReceivableService
}

// NewReceivableHandler creates a new ReceivableHandler
func NewReceivableHandler(receivables *financeapp.ReceivableService) *ReceivableHandler {
	return &ReceivableHandler{receivables: receivables}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *ReceivableHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/receivables")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/pay", h.MarkPaid)

	rg.GET("/customers/:id/receivables/outstanding", h.ListOutstanding)
}

// Create handles POST /receivables
func (h *ReceivableHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.CreateReceivableRequest
	if !h.bindJSON(c, &req) {
		return
	}
	receivable, err := h.receivables.Create(c.Request.Context(), tenantID, financeapp.CreateReceivableRequest{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		DueDate:    req.DueDate,
		OrderID:    req.OrderID,
		BoletoID:   req.BoletoID,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receivable)
}

// Get handles GET /receivables/:id
func (h *ReceivableHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	receivable, err := h.receivables.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receivable)
}

// List handles GET /receivables
func (h *ReceivableHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var q dto.ReceivableListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	q.Normalize()
	list, total, err := h.receivables.List(c.Request.Context(), tenantID, financeapp.ReceivableListFilter{
		CustomerID: optionalUUID(q.CustomerID),
		Status:     q.Status,
		DueBefore:  q.DueBefore,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, total, q.Page, q.PageSize)
}

// ListOutstanding handles GET /customers/:id/receivables/outstanding
func (h *ReceivableHandler) ListOutstanding(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	customerID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.receivables.ListOutstanding(c.Request.Context(), tenantID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, list)
}

// MarkPaid handles POST /receivables/:id/pay
func (h *ReceivableHandler) MarkPaid(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.MarkReceivablePaidRequest
	if !h.bindJSON(c, &req) {
		return
	}
	receivable, err := h.receivables.MarkPaid(c.Request.Context(), tenantID, id, financeapp.MarkReceivablePaidRequest{
		Method:        req.Method,
		BankAccountID: req.BankAccountID,
		PaidBy:        req.PaidBy,
		PaidAt:        valueOrZero(req.PaidAt),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receivable)
}
