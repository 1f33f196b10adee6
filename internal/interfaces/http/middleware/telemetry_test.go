package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func requestCount(t *testing.T, reader *sdkmetric.ManualReader, route string, status int) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				r, _ := dp.Attributes.Value(attribute.Key("http.route"))
				s, _ := dp.Attributes.Value(attribute.Key("http.status_code"))
				if r.AsString() == route && s.AsInt64() == int64(status) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	engine := gin.New()
	engine.Use(HTTPMetrics(meter, zap.NewNop()))
	engine.GET("/accounts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(engine, http.MethodGet, "/accounts/"+uuid.NewString(), nil)
	serve(engine, http.MethodGet, "/accounts/"+uuid.NewString(), nil)
	serve(engine, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, int64(2), requestCount(t, reader, "/accounts/:id", http.StatusOK))
	assert.Equal(t, int64(1), requestCount(t, reader, "unmatched", http.StatusNotFound))
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	engine := gin.New()
	engine.Use(HTTPMetrics(nil, nil))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	assert.Equal(t, http.StatusAccepted, serve(engine, http.MethodGet, "/", nil).Code)
}

func TestTracing_EnrichesServerSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tenantID := uuid.New()

	engine := gin.New()
	engine.Use(Tracing("ledger-test", otelgin.WithTracerProvider(tp)), RequestID())
	api := engine.Group("/api", Tenant(TenantConfig{}), SpanEnricher())
	api.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(engine, http.MethodGet, "/api/boom", map[string]string{
		RequestIDHeader: "req-9",
		TenantHeader:    tenantID.String(),
	})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "req-9", attrs["request_id"])
	assert.Equal(t, tenantID.String(), attrs["tenant_id"])
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
