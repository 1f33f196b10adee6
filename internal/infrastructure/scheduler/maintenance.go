package scheduler

import (
	"context"
	"errors"
	"fmt"

	financeapp "github.com/erp/ledger/internal/application/finance"
	"go.uber.org/zap"
)

// OverdueSweeper flags records past their due date
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// CreditReconciler recomputes available credit for every customer
type CreditReconciler interface {
	ReconcileAll(ctx context.Context) (*financeapp.ReconcileCreditSummary, error)
}

// LedgerReplayer replays every account ledger
type LedgerReplayer interface {
	RecomputeAll(ctx context.Context) ([]financeapp.RecomputeResult, error)
}

// LedgerMaintenance runs maintenance jobs against the ledger services
type LedgerMaintenance struct {
	Receivables OverdueSweeper
	Boletos     OverdueSweeper
	Credit      CreditReconciler
	Ledger      LedgerReplayer
	Logger      *zap.Logger
}

// Run implements Runner
func (m *LedgerMaintenance) Run(ctx context.Context, kind JobKind) error {
	log := m.Logger
	if log == nil {
		log = zap.NewNop()
	}
	switch kind {
	case JobOverdueSweep:
		return m.sweep(ctx, log)
	case JobCreditReconcile:
		summary, err := m.Credit.ReconcileAll(ctx)
		if err != nil {
			return fmt.Errorf("reconcile credit: %w", err)
		}
		log.Info("Credit reconciled",
			zap.Int("checked", summary.Checked),
			zap.Int("corrected", summary.Corrected),
		)
		return nil
	case JobLedgerReplay:
		results, err := m.Ledger.RecomputeAll(ctx)
		if err != nil {
			return fmt.Errorf("replay ledgers: %w", err)
		}
		corrections, drifted := 0, 0
		for _, r := range results {
			corrections += r.Corrections
			if r.BalanceCorrected {
				drifted++
			}
		}
		log.Info("Ledgers replayed",
			zap.Int("accounts", len(results)),
			zap.Int("corrections", corrections),
			zap.Int("balances_corrected", drifted),
		)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJob, kind)
	}
}

// sweep runs both sweeps even when the first fails
func (m *LedgerMaintenance) sweep(ctx context.Context, log *zap.Logger) error {
	receivables, rerr := m.Receivables.SweepOverdue(ctx)
	boletos, berr := m.Boletos.SweepOverdue(ctx)
	if err := errors.Join(rerr, berr); err != nil {
		return fmt.Errorf("sweep overdue: %w", err)
	}
	log.Info("Overdue sweep finished",
		zap.Int64("receivables", receivables),
		zap.Int64("boletos", boletos),
	)
	return nil
}
