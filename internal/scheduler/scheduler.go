package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/equityflow-backend/internal/usecase/dashboard"
	"github.com/simaogato/equityflow-backend/internal/usecase/financing"
)

// Reconciler replays stored payments against ledger snapshots
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]*financing.ReconcileReport, error)
}

// PortfolioReader reads the platform-wide ownership summary
type PortfolioReader interface {
	GetPortfolio(ctx context.Context) (*dashboard.PortfolioSummary, error)
}

// Scheduler manages the periodic back-office jobs.
type Scheduler struct {
	Cron       *cron.Cron
	Reconciler Reconciler
	Portfolio  PortfolioReader
	Log        *logrus.Logger
	Ctx        context.Context
}

// NewScheduler creates a new Scheduler. Cron specs carry a seconds field.
func NewScheduler(ctx context.Context, reconciler Reconciler, portfolio PortfolioReader, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Reconciler: reconciler,
		Portfolio:  portfolio,
		Log:        log,
		Ctx:        ctx,
	}
}

// RegisterAll registers the ledger reconciliation and portfolio report tasks.
func (s *Scheduler) RegisterAll(reconcileCron, reportCron string) error {
	if _, err := s.Cron.AddFunc(reconcileCron, s.reconcileTask); err != nil {
		return fmt.Errorf("register reconcile task: %w", err)
	}
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

// RunReconcileNow executes the reconciliation immediately (manual trigger).
func (s *Scheduler) RunReconcileNow() {
	s.reconcileTask()
}

func (s *Scheduler) reconcileTask() {
	s.Log.Info("running ledger reconciliation")
	reports, err := s.Reconciler.ReconcileAll(s.Ctx)
	if err != nil {
		s.Log.WithError(err).Error("ledger reconciliation failed")
		return
	}

	inconsistent := 0
	for _, r := range reports {
		if !r.Consistent {
			inconsistent++
		}
	}
	entry := s.Log.WithFields(logrus.Fields{
		"schedules":    len(reports),
		"inconsistent": inconsistent,
	})
	if inconsistent > 0 {
		entry.Warn("ledger reconciliation found drift")
		return
	}
	entry.Info("ledger reconciliation complete")
}

func (s *Scheduler) reportTask() {
	summary, err := s.Portfolio.GetPortfolio(s.Ctx)
	if err != nil {
		s.Log.WithError(err).Error("portfolio report failed")
		return
	}

	for _, t := range summary.Totals {
		s.Log.WithFields(logrus.Fields{
			"currency":           t.Currency,
			"property_value":     dashboard.FormatMoney(t.PropertyValue, t.Currency),
			"equity_paid":        dashboard.FormatMoney(t.EquityPaid, t.Currency),
			"remaining_balance":  dashboard.FormatMoney(t.RemainingBalance, t.Currency),
			"equity_percentage":  dashboard.FormatPercent(t.EquityPercentage),
			"schedules_accruing": t.SchedulesAccruing,
			"schedules_paid_off": t.SchedulesPaidOff,
		}).Info("portfolio report")
	}
}
