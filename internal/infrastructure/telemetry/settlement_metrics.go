package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SettlementKind labels how money entered or left a ledger
type SettlementKind string

const (
	SettlementKindSingle  SettlementKind = "single"
	SettlementKindBatch   SettlementKind = "batch"
	SettlementKindWebhook SettlementKind = "webhook"
	SettlementKindBoleto  SettlementKind = "boleto"
	SettlementKindExpense SettlementKind = "expense"
	SettlementKindClosure SettlementKind = "commission_closure"
)

// CreditDirection labels a credit adjustment
type CreditDirection string

const (
	CreditConsume CreditDirection = "consume"
	CreditRestore CreditDirection = "restore"
)

// Metric attribute keys for settlement metrics
var (
	AttrSettlementKind  = attribute.Key("settlement_kind")
	AttrTransactionType = attribute.Key("transaction_type")
	AttrWebhookOutcome  = attribute.Key("webhook_outcome")
	AttrCreditDirection = attribute.Key("credit_direction")
	AttrInstrument      = attribute.Key("instrument")
)

// SettlementMetrics counts ledger appends, settlements, webhook outcomes and
// credit movements. A nil *SettlementMetrics records nothing.
type SettlementMetrics struct {
	logger *zap.Logger

	appendTotal      *Counter
	driftCorrections *Counter
	settlementTotal  *Counter
	settledCents     *Counter
	webhookTotal     *Counter
	creditCents      *Counter
	overdueMarked    *Counter
	replayDuration   *Histogram
}

// SettlementMetricsConfig holds configuration for settlement metrics
type SettlementMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSettlementMetrics registers the settlement instruments on the meter
func NewSettlementMetrics(cfg SettlementMetricsConfig) (*SettlementMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &SettlementMetrics{logger: logger}
	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&m.appendTotal, "ledger_transaction_appended_total", "Ledger transactions appended", "{transactions}"},
		{&m.driftCorrections, "ledger_balance_drift_corrections_total", "balanceAfter snapshots rewritten by replay", "{snapshots}"},
		{&m.settlementTotal, "ledger_settlement_total", "Settlements posted", "{settlements}"},
		{&m.settledCents, "ledger_settled_amount_total", "Settled amount in cents", "{cents}"},
		{&m.webhookTotal, "ledger_payment_webhook_total", "Payment notifications by outcome", "{notifications}"},
		{&m.creditCents, "ledger_credit_adjusted_total", "Credit consumed or restored in cents", "{cents}"},
		{&m.overdueMarked, "ledger_overdue_marked_total", "Records moved to OVERDUE by the sweep", "{records}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	m.replayDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "ledger_replay_duration_seconds",
		Description: "Time spent replaying an account ledger",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAppend counts one appended transaction
func (m *SettlementMetrics) RecordAppend(ctx context.Context, tenantID uuid.UUID, txType string) {
	if m == nil {
		return
	}
	m.appendTotal.Inc(ctx, AttrTenantID.String(tenantID.String()), AttrTransactionType.String(txType))
}

// RecordReplay records how long a replay took and how many snapshots it fixed
func (m *SettlementMetrics) RecordReplay(ctx context.Context, tenantID uuid.UUID, d time.Duration, corrections int) {
	if m == nil {
		return
	}
	m.replayDuration.RecordDuration(ctx, d, AttrTenantID.String(tenantID.String()))
	if corrections > 0 {
		m.driftCorrections.Add(ctx, int64(corrections), AttrTenantID.String(tenantID.String()))
	}
}

// RecordSettlement counts a settlement and its amount
func (m *SettlementMetrics) RecordSettlement(ctx context.Context, tenantID uuid.UUID, kind SettlementKind, amount decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String()), AttrSettlementKind.String(string(kind))}
	m.settlementTotal.Inc(ctx, attrs...)
	m.settledCents.Add(ctx, toCents(amount), attrs...)
}

// RecordWebhook counts a payment notification by outcome
func (m *SettlementMetrics) RecordWebhook(ctx context.Context, tenantID uuid.UUID, outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.Inc(ctx, AttrTenantID.String(tenantID.String()), AttrWebhookOutcome.String(outcome))
}

// RecordCreditAdjustment counts credit consumed or restored
func (m *SettlementMetrics) RecordCreditAdjustment(ctx context.Context, tenantID uuid.UUID, direction CreditDirection, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.creditCents.Add(ctx, toCents(amount),
		AttrTenantID.String(tenantID.String()),
		AttrCreditDirection.String(string(direction)),
	)
}

// RecordOverdueSweep counts records flipped to OVERDUE
func (m *SettlementMetrics) RecordOverdueSweep(ctx context.Context, instrument string, count int64) {
	if m == nil || count == 0 {
		return
	}
	m.overdueMarked.Add(ctx, count, AttrInstrument.String(instrument))
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Abs().Shift(2).IntPart()
}

// ErrMeterNil is returned when a metrics constructor gets no meter
var ErrMeterNil = &MetricsError{Op: "NewSettlementMetrics", Err: "meter cannot be nil"}

// MetricsError is a metrics setup failure
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
