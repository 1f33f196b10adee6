package handler

import (
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookHandler receives payment gateway notifications. Deliveries are
// retried by the gateway, so every repeat of a processed notification is
// answered with 200 and a DUPLICATE or ALREADY_PAID outcome.
type WebhookHandler struct {
	BaseHandler
	settlement *financeapp.SettlementService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(settlement *financeapp.SettlementService) *WebhookHandler {
	return &WebhookHandler{settlement: settlement}
}

// RegisterRoutes mounts the webhook outside the versioned API
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments", h.Payment)
}

// Payment handles POST /webhooks/payments
func (h *WebhookHandler) Payment(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.PaymentWebhookRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.settlement.SettleFromExternalNotification(c.Request.Context(), finance.PaymentNotification{
		TenantID:   tenantID,
		ExternalID: req.ExternalID,
		Status:     finance.NotificationStatus(req.Status),
		PaidAt:     valueOrZero(req.PaidAt),
		Amount:     req.Amount,
		NetAmount:  req.NetAmount,
		CustomerID: req.CustomerID,
		AccountID:  req.AccountID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.ForRequest(c).Info("Payment notification handled",
		zap.String("external_id", req.ExternalID),
		zap.String("status", req.Status),
		zap.String("outcome", result.Outcome),
	)
	h.Success(c, result)
}
