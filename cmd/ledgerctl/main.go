// Command ledgerctl runs the ledger's batch operations from the shell:
// ledger replay, overdue sweeps, credit reconciliation, commission closing
// and requeueing of dead event deliveries. Whatever invokes it (cron, a
// Kubernetes CronJob) decides the cadence.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	eventapp "github.com/erp/ledger/internal/application/event"
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	logLevel string
}

// env is what every command gets once the database is open
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	scope  financeapp.TransactionScope
	outbox *eventapp.OutboxService
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Run ledger maintenance operations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(
		newRecomputeCommand(opts),
		newSweepCommand(opts),
		newReconcileCreditCommand(opts),
		newCloseCommissionsCommand(opts),
		newEventsCommand(opts),
		newMaintenanceCommand(opts),
	)
	return root
}

func newRecomputeCommand(opts *options) *cobra.Command {
	return withEnv(opts, &cobra.Command{
		Use:   "recompute",
		Short: "Replay every account ledger and repair stored balances",
		Args:  cobra.NoArgs,
	}, func(cmd *cobra.Command, e *env, _ []string) error {
		svc := financeapp.NewLedgerService(financeapp.LedgerServiceConfig{Scope: e.scope, Logger: e.log})
		results, err := svc.RecomputeAll(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tBALANCE\tREPLAYED\tCORRECTIONS\tBALANCE FIXED")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\n", r.AccountID, r.Balance.StringFixed(2), r.Replayed, r.Corrections, r.BalanceCorrected)
		}
		return w.Flush()
	})
}

func newSweepCommand(opts *options) *cobra.Command {
	return withEnv(opts, &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Flag receivables and boletos past their due date",
		Args:  cobra.NoArgs,
	}, func(cmd *cobra.Command, e *env, _ []string) error {
		receivables := financeapp.NewReceivableService(financeapp.ReceivableServiceConfig{Scope: e.scope, Logger: e.log})
		boletos := financeapp.NewBoletoService(financeapp.BoletoServiceConfig{Scope: e.scope, Logger: e.log})
		r, err := receivables.SweepOverdue(cmd.Context())
		if err != nil {
			return err
		}
		b, err := boletos.SweepOverdue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "receivables overdue: %d\nboletos overdue: %d\n", r, b)
		return nil
	})
}

func newReconcileCreditCommand(opts *options) *cobra.Command {
	return withEnv(opts, &cobra.Command{
		Use:   "reconcile-credit",
		Short: "Recompute available credit from open exposure",
		Args:  cobra.NoArgs,
	}, func(cmd *cobra.Command, e *env, _ []string) error {
		svc := financeapp.NewCreditService(financeapp.CreditServiceConfig{Scope: e.scope, Logger: e.log})
		summary, err := svc.ReconcileAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "customers checked: %d\ncorrected: %d\n", summary.Checked, summary.Corrected)
		return nil
	})
}

func newCloseCommissionsCommand(opts *options) *cobra.Command {
	var tenant, seller string
	cmd := withEnv(opts, &cobra.Command{
		Use:   "close-commissions <YYYY-MM>",
		Short: "Close the pending commissions of a month",
		Args:  cobra.ExactArgs(1),
	}, func(cmd *cobra.Command, e *env, args []string) error {
		tenantID, err := uuid.Parse(tenant)
		if err != nil {
			return fmt.Errorf("invalid --tenant %q", tenant)
		}
		var sellerID *uuid.UUID
		if seller != "" {
			id, err := uuid.Parse(seller)
			if err != nil {
				return fmt.Errorf("invalid --seller %q", seller)
			}
			sellerID = &id
		}
		svc := financeapp.NewCommissionClosureService(financeapp.CommissionClosureServiceConfig{Scope: e.scope, Logger: e.log})
		result, err := svc.CloseCommissions(cmd.Context(), tenantID, args[0], sellerID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SELLER\tCLOSURE\tTOTAL\tCOMMISSIONS")
		for _, c := range result.Closures {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.SellerID, c.ID, c.TotalAmount.StringFixed(2), c.CommissionCount)
		}
		for _, f := range result.Failures {
			fmt.Fprintf(w, "%s\tFAILED\t%s\t%s\n", f.SellerID, f.Code, f.Message)
		}
		return w.Flush()
	})
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&seller, "seller", "", "close only this seller")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newEventsCommand(opts *options) *cobra.Command {
	var tenant string
	events := &cobra.Command{
		Use:   "events",
		Short: "Inspect the event outbox",
	}
	events.PersistentFlags().StringVar(&tenant, "tenant", "", "tenant id")
	_ = events.MarkPersistentFlagRequired("tenant")

	parseTenant := func() (uuid.UUID, error) {
		id, err := uuid.Parse(tenant)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --tenant %q", tenant)
		}
		return id, nil
	}

	events.AddCommand(
		withEnv(opts, &cobra.Command{Use: "stats", Short: "Count entries by delivery status", Args: cobra.NoArgs},
			func(cmd *cobra.Command, e *env, _ []string) error {
				tenantID, err := parseTenant()
				if err != nil {
					return err
				}
				s, err := e.outbox.Stats(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pending: %d\nprocessing: %d\nsent: %d\nfailed: %d\ndead: %d\n",
					s.Pending, s.Processing, s.Sent, s.Failed, s.Dead)
				return nil
			}),
		withEnv(opts, &cobra.Command{Use: "retry-dead", Short: "Requeue every dead delivery", Args: cobra.NoArgs},
			func(cmd *cobra.Command, e *env, _ []string) error {
				tenantID, err := parseTenant()
				if err != nil {
					return err
				}
				n, err := e.outbox.RetryAll(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued: %d\n", n)
				return nil
			}),
	)
	return events
}

func newMaintenanceCommand(opts *options) *cobra.Command {
	var jobs []string
	cmd := withEnv(opts, &cobra.Command{
		Use:   "maintenance",
		Short: "Run maintenance jobs with retries and wait for them",
		Long: "Runs the named maintenance jobs (" + jobKindNames() + ") on a worker pool.\n" +
			"Without --jobs the configured maintenance.jobs list runs.",
		Args: cobra.NoArgs,
	}, func(cmd *cobra.Command, e *env, _ []string) error {
		if len(jobs) == 0 {
			jobs = e.cfg.Maintenance.Jobs
		}
		kinds, err := scheduler.ParseJobKinds(jobs)
		if err != nil {
			return err
		}
		return runMaintenance(cmd, e, kinds)
	})
	cmd.Flags().StringSliceVar(&jobs, "jobs", nil, "jobs to run, comma separated")
	return cmd
}

func runMaintenance(cmd *cobra.Command, e *env, kinds []scheduler.JobKind) error {
	ctx := cmd.Context()
	mc := e.cfg.Maintenance
	runner := &scheduler.LedgerMaintenance{
		Receivables: financeapp.NewReceivableService(financeapp.ReceivableServiceConfig{Scope: e.scope, Logger: e.log}),
		Boletos:     financeapp.NewBoletoService(financeapp.BoletoServiceConfig{Scope: e.scope, Logger: e.log}),
		Credit:      financeapp.NewCreditService(financeapp.CreditServiceConfig{Scope: e.scope, Logger: e.log}),
		Ledger:      financeapp.NewLedgerService(financeapp.LedgerServiceConfig{Scope: e.scope, Logger: e.log}),
		Logger:      e.log,
	}
	sched := scheduler.NewScheduler(scheduler.Config{
		Workers:       mc.Workers,
		JobTimeout:    mc.JobTimeout,
		RetryAttempts: mc.RetryAttempts,
		RetryDelay:    mc.RetryDelay,
	}, runner, e.log)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sched.Stop(context.Background()); err != nil {
			e.log.Warn("Stopping maintenance workers", zap.Error(err))
		}
	}()

	submitted := make([]*scheduler.Job, 0, len(kinds))
	for _, kind := range kinds {
		job, err := sched.Submit(kind)
		if err != nil {
			return err
		}
		submitted = append(submitted, job)
	}

	var errs []error
	for _, job := range submitted {
		if err := job.Wait(ctx); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: failed\n", job.Kind)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", job.Kind)
	}
	return errors.Join(errs...)
}

func jobKindNames() string {
	var b strings.Builder
	for i, k := range scheduler.AllJobKinds() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(k))
	}
	return b.String()
}

// withEnv wires a command that needs the database
func withEnv(opts *options, cmd *cobra.Command, run func(*cobra.Command, *env, []string) error) *cobra.Command {
	cmd.RunE = func(c *cobra.Command, args []string) error {
		log, err := logger.New(config.LogConfig{Level: opts.logLevel, Format: "console", Output: "stderr"})
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		gormLog := logger.NewGormLogger(log, logger.GormLevel(opts.logLevel), cfg.Telemetry.DBSlowQueryThresh)
		db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
		if err != nil {
			return err
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				log.Warn("Closing database", zap.Error(cerr))
			}
		}()

		serializer := event.NewEventSerializer()
		event.RegisterLedgerEvents(serializer)
		e := &env{
			cfg:    cfg,
			log:    log,
			scope:  persistence.NewGormTransactionScope(db.DB, event.NewOutboxPublisher(serializer)),
			outbox: eventapp.NewOutboxService(event.NewGormOutboxRepository(db.DB), log),
		}
		log.Debug("Running ledger command", zap.String("command", c.CommandPath()))
		return run(c, e, args)
	}
	return cmd
}
