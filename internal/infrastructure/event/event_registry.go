package event

import "github.com/erp/ledger/internal/domain/finance"

// RegisterLedgerEvents registers every event the ledger writes to the outbox.
// The outbox processor cannot replay an entry whose type is missing here.
func RegisterLedgerEvents(serializer *EventSerializer) {
	serializer.Register(finance.EventTypeTransactionAppended, &finance.TransactionAppendedEvent{})
	serializer.Register(finance.EventTypeTransactionReversed, &finance.TransactionReversedEvent{})
	serializer.Register(finance.EventTypeBalanceDriftCorrected, &finance.BalanceDriftCorrectedEvent{})

	serializer.Register(finance.EventTypeReceivableCreated, &finance.ReceivableCreatedEvent{})
	serializer.Register(finance.EventTypeReceivablePaid, &finance.ReceivablePaidEvent{})

	// boleto lifecycle events share one payload shape
	for _, t := range []string{
		finance.EventTypeBoletoIssued,
		finance.EventTypeBoletoPaid,
		finance.EventTypeBoletoOverdue,
		finance.EventTypeBoletoCancelled,
	} {
		serializer.Register(t, &finance.BoletoEvent{})
	}

	serializer.Register(finance.EventTypeBatchSettled, &finance.BatchSettledEvent{})
	serializer.Register(finance.EventTypePaymentRecovered, &finance.PaymentRecoveredEvent{})

	for _, t := range []string{
		finance.EventTypeClosureCreated,
		finance.EventTypeClosurePaid,
		finance.EventTypeClosureCancelled,
	} {
		serializer.Register(t, &finance.ClosureEvent{})
	}
}
