package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.lumeweb.com/portal-plugin-chargebee/internal/cron/tasks"
	"go.uber.org/zap"
)

const reconcileTimeout = 30 * time.Minute

var ErrNoSchedule = errors.New("no reconcile schedule configured")

type Cron struct {
	cron       *cron.Cron
	schedule   string
	reconciler tasks.Reconciler
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewCron(schedule string, reconciler tasks.Reconciler, logger *zap.Logger) *Cron {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Cron{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule:   schedule,
		reconciler: reconciler,
		logger:     logger.Named("cron"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ScheduleJobs registers the reconcile job on the configured schedule.
func (c *Cron) ScheduleJobs() error {
	if c.schedule == "" {
		return ErrNoSchedule
	}

	_, err := c.cron.AddFunc(c.schedule, c.RunReconcile)
	if err != nil {
		return fmt.Errorf("failed to schedule subscription reconciliation: %w", err)
	}

	return nil
}

// RunReconcile runs one reconciliation outside the schedule.
func (c *Cron) RunReconcile() {
	_ = tasks.ReconcileSubscriptions(c.ctx, c.reconciler, reconcileTimeout, c.logger)
}

func (c *Cron) Start() {
	c.cron.Start()
	c.logger.Info("cron started", zap.String("reconcile_schedule", c.schedule))
}

// Stop cancels a running reconciliation and waits for it to return.
func (c *Cron) Stop() {
	c.cancel()
	<-c.cron.Stop().Done()
}
