package handler

import (
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// LedgerHandler serves accounts and their transactions
type LedgerHandler struct {
	BaseHandler
	ledger     *financeapp.LedgerService
	statements *financeapp.StatementReconciliationService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger *financeapp.LedgerService, statements *financeapp.StatementReconciliationService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, statements: statements}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/accounts")
	accounts.POST("", h.CreateAccount)
	accounts.GET("", h.ListAccounts)
	accounts.GET("/:id", h.GetAccount)
	accounts.GET("/:id/transactions", h.ListTransactions)
	accounts.POST("/:id/transactions", h.AppendTransaction)
	accounts.POST("/:id/recompute", h.Recompute)
	accounts.POST("/:id/increment", h.Increment)
	accounts.POST("/:id/decrement", h.Decrement)
	accounts.POST("/:id/statements/reconcile", h.ReconcileStatement)
	accounts.POST("/:id/statements/import", h.ImportStatement)

	rg.POST("/transactions/:id/reverse", h.ReverseTransaction)
}

// CreateAccount handles POST /accounts
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.CreateAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	kind := finance.AccountKind(req.Kind)
	if kind == "" {
		kind = finance.AccountKindBank
	}
	account, err := h.ledger.CreateAccount(c.Request.Context(), tenantID, financeapp.CreateAccountRequest{
		Name:           req.Name,
		Kind:           kind,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, account)
}

// ListAccounts handles GET /accounts
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var q dto.ListRequest
	if !h.bindQuery(c, &q) {
		return
	}
	q.Normalize()
	accounts, total, err := h.ledger.ListAccounts(c.Request.Context(), tenantID, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, accounts, total, q.Page, q.PageSize)
}

// GetAccount handles GET /accounts/:id
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	account, err := h.ledger.GetAccount(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// ListTransactions handles GET /accounts/:id/transactions
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q dto.TransactionListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	q.Normalize()
	txns, total, err := h.ledger.ListTransactions(c.Request.Context(), tenantID, id, financeapp.TransactionListFilter{
		From:     q.From,
		To:       q.To,
		Type:     q.Type,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, txns, total, q.Page, q.PageSize)
}

// AppendTransaction handles POST /accounts/:id/transactions
func (h *LedgerHandler) AppendTransaction(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.AppendTransactionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	refType := finance.ReferenceType(req.ReferenceType)
	if refType == "" {
		refType = finance.ReferenceManual
	}
	tx, err := h.ledger.AppendTransaction(c.Request.Context(), tenantID, financeapp.AppendTransactionRequest{
		AccountID:     id,
		Type:          finance.TransactionType(req.Type),
		Amount:        req.Amount,
		Date:          valueOrZero(req.Date),
		ReferenceType: refType,
		ReferenceID:   req.ReferenceID,
		Description:   req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, tx)
}

// Recompute handles POST /accounts/:id/recompute, the full replay repair
func (h *LedgerHandler) Recompute(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.ledger.RecomputeBalances(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Increment handles POST /accounts/:id/increment
func (h *LedgerHandler) Increment(c *gin.Context) {
	h.adjust(c, h.ledger.IncrementAtomically)
}

// Decrement handles POST /accounts/:id/decrement
func (h *LedgerHandler) Decrement(c *gin.Context) {
	h.adjust(c, h.ledger.DecrementAtomically)
}

func (h *LedgerHandler) adjust(c *gin.Context, apply balanceAdjuster) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustBalanceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := apply(c.Request.Context(), tenantID, id, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// ReverseTransaction handles POST /transactions/:id/reverse
func (h *LedgerHandler) ReverseTransaction(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.ledger.ReverseTransaction(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ReconcileStatement handles POST /accounts/:id/statements/reconcile
func (h *LedgerHandler) ReconcileStatement(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReconcileStatementRequest
	if !h.bindJSON(c, &req) {
		return
	}
	lines := make([]financeapp.StatementLineRequest, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, financeapp.StatementLineRequest{
			ExternalID: l.ExternalID,
			Amount:     l.Amount,
			Date:       l.Date,
			Type:       finance.TransactionType(l.Type),
		})
	}
	result, err := h.statements.Reconcile(c.Request.Context(), tenantID, id, lines)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
