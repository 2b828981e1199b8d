package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// ReconcileSubscriptions refreshes the locally cached subscriptions from
// Chargebee. A run is bounded by timeout when it is positive.
func ReconcileSubscriptions(ctx context.Context, reconciler Reconciler, timeout time.Duration, logger *zap.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	synced, err := reconciler.Reconcile(ctx)
	if err != nil {
		logger.Error("subscription reconciliation finished with errors",
			zap.Int("synced", synced),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}

	logger.Info("subscription reconciliation finished",
		zap.Int("synced", synced),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}
