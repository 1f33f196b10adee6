package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// =============================================================================
// Fixture
// =============================================================================

type fixture struct {
	db       *gorm.DB
	outbox   *testutil.RecordingOutbox
	scope    *persistence.GormTransactionScope
	tenantID uuid.UUID
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	outbox := &testutil.RecordingOutbox{}
	return &fixture{
		db:       db,
		outbox:   outbox,
		scope:    persistence.NewGormTransactionScope(db, outbox),
		tenantID: testutil.TestTenantID(),
		now:      time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) clock() time.Time {
	return f.now
}

func (f *fixture) ledger() *appfinance.LedgerService {
	return appfinance.NewLedgerService(appfinance.LedgerServiceConfig{Scope: f.scope, Now: f.clock})
}

func (f *fixture) credit() *appfinance.CreditService {
	return appfinance.NewCreditService(appfinance.CreditServiceConfig{Scope: f.scope})
}

func (f *fixture) receivables() *appfinance.ReceivableService {
	return appfinance.NewReceivableService(appfinance.ReceivableServiceConfig{Scope: f.scope, Now: f.clock})
}

func (f *fixture) settlement(cfg appfinance.SettlementServiceConfig) *appfinance.SettlementService {
	cfg.Scope = f.scope
	cfg.Now = f.clock
	return appfinance.NewSettlementService(cfg)
}

func (f *fixture) due(days int) time.Time {
	return f.now.AddDate(0, 0, days)
}

func (f *fixture) hasEvent(eventType string) bool {
	for _, t := range f.outbox.Types() {
		if t == eventType {
			return true
		}
	}
	return false
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, testutil.Dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// =============================================================================
// Mocks
// =============================================================================

type MockChargeIssuer struct {
	mock.Mock
}

func (m *MockChargeIssuer) IssueCharge(ctx context.Context, req finance.ChargeRequest) (*finance.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.ChargeResult), args.Error(1)
}

type MockInvoiceTracker struct {
	mock.Mock
}

func (m *MockInvoiceTracker) MarkInvoiceStatus(ctx context.Context, tenantID, orderID uuid.UUID, status finance.InvoiceStatus) error {
	args := m.Called(ctx, tenantID, orderID, status)
	return args.Error(0)
}

// memoryIdempotencyStore keeps keys in a map and never expires them
type memoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{keys: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memoryIdempotencyStore) Close() error {
	return nil
}
