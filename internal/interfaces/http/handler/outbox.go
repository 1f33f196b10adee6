package handler

import (
	eventapp "github.com/erp/ledger/internal/application/event"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// OutboxHandler exposes abandoned event deliveries for replay
type OutboxHandler struct {
	BaseHandler
	outbox *eventapp.OutboxService
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(outbox *eventapp.OutboxService) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	events := rg.Group("/events")
	events.GET("/dead", h.ListDead)
	events.POST("/dead/retry", h.RetryAll)
	events.GET("/stats", h.Stats)
	events.POST("/:id/retry", h.Retry)
}

// ListDead handles GET /events/dead
func (h *OutboxHandler) ListDead(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var q dto.ListRequest
	if !h.bindQuery(c, &q) {
		return
	}
	q.Normalize()
	entries, total, err := h.outbox.ListDead(c.Request.Context(), tenantID, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, q.Page, q.PageSize)
}

// Retry handles POST /events/:id/retry
func (h *OutboxHandler) Retry(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.outbox.Retry(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAll handles POST /events/dead/retry
func (h *OutboxHandler) RetryAll(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	n, err := h.outbox.RetryAll(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"requeued": n})
}

// Stats handles GET /events/stats
func (h *OutboxHandler) Stats(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	stats, err := h.outbox.Stats(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
