package handler

import (
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SettlementHandler serves receivable settlement and expense payment
type SettlementHandler struct {
	BaseHandler
	settlement *financeapp.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(settlement *financeapp.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlement: settlement}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SettlementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	settlements := rg.Group("/settlements")
	settlements.POST("", h.SettleSingle)
	settlements.POST("/batch", h.SettleBatch)

	expenses := rg.Group("/expenses")
	expenses.POST("", h.CreateExpense)
	expenses.GET("", h.ListExpenses)
	expenses.GET("/:id", h.GetExpense)
	expenses.POST("/:id/pay", h.PayExpense)
}

// SettleSingle handles POST /settlements
func (h *SettlementHandler) SettleSingle(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.SettleSingleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.settlement.SettleSingle(c.Request.Context(), tenantID, financeapp.SettleSingleRequest{
		ReceivableID:  req.ReceivableID,
		BankAccountID: req.BankAccountID,
		Amount:        req.Amount,
		Method:        req.Method,
		PaidBy:        req.PaidBy,
		PaidAt:        valueOrZero(req.PaidAt),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SettleBatch handles POST /settlements/batch
func (h *SettlementHandler) SettleBatch(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.SettleBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.settlement.SettleBatch(c.Request.Context(), tenantID, financeapp.SettleBatchRequest{
		ReceivableIDs: req.ReceivableIDs,
		BankAccountID: req.BankAccountID,
		Method:        req.Method,
		PaidBy:        req.PaidBy,
		PaidAt:        valueOrZero(req.PaidAt),
		Strict:        req.Strict,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// CreateExpense handles POST /expenses
func (h *SettlementHandler) CreateExpense(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.CreateExpenseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	expense, err := h.settlement.CreateExpense(c.Request.Context(), tenantID, financeapp.CreateExpenseRequest{
		Description: req.Description,
		Amount:      req.Amount,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, expense)
}

// GetExpense handles GET /expenses/:id
func (h *SettlementHandler) GetExpense(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	expense, err := h.settlement.GetExpense(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, expense)
}

// ListExpenses handles GET /expenses
func (h *SettlementHandler) ListExpenses(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var q dto.ListRequest
	if !h.bindQuery(c, &q) {
		return
	}
	q.Normalize()
	list, total, err := h.settlement.ListExpenses(c.Request.Context(), tenantID, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, total, q.Page, q.PageSize)
}

// PayExpense handles POST /expenses/:id/pay
func (h *SettlementHandler) PayExpense(c *gin.Context) {
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
	expense, err := h.settlement.PayExpense(c.Request.Context(), tenantID, id, financeapp.PayExpenseRequest{
		AccountID: req.AccountID,
		PaidAt:    valueOrZero(req.PaidAt),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, expense)
}
