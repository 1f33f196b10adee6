package middleware

import (
	"net/http"
	"strings"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TenantHeader names the tenant of a request
	TenantHeader = "X-Tenant-ID"
	// TenantIDKey is the gin context key of the parsed tenant id
	TenantIDKey = "tenant_id"
)

// TenantConfig configures Tenant
type TenantConfig struct {
	// SkipPaths are served without a tenant, e.g. health checks
	SkipPaths []string
	// Default is used when the header is missing; uuid.Nil makes the header required
	Default uuid.UUID
}

// Tenant resolves the tenant of every request from the X-Tenant-ID header.
// Authentication happens upstream; the header is trusted as given.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		tenantID := cfg.Default
		if raw := c.GetHeader(TenantHeader); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				abort(c, dto.ErrCodeTenantInvalid, "X-Tenant-ID must be a UUID")
				return
			}
			tenantID = parsed
		}
		if tenantID == uuid.Nil {
			abort(c, dto.ErrCodeTenantRequired, "X-Tenant-ID header is required")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

// GetTenantID returns the tenant resolved by Tenant
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func abort(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, GetRequestID(c)))
}

// BodyLimit rejects bodies larger than maxBytes
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			abort(c, dto.ErrCodeTooLarge, "Request body exceeds the allowed size")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
