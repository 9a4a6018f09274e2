package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// sendResults delivers executions in FIFO order. Delivery is at most once: a
// report that fails is logged and dropped.
func (m *Manager) sendResults(ctx context.Context) error {
	log := m.logger.With(zap.String("sender", "execution"))
	for {
		execution, err := m.results.Take(ctx)
		if err != nil {
			return nil
		}
		if err := m.opts.Reporter.ReportExecution(ctx, execution); err != nil {
			m.dropped(log, "execution", execution.ID, err)
			continue
		}
		log.Info("execution reported", zap.Int64("id", execution.ID))
	}
}

func (m *Manager) sendFailures(ctx context.Context) error {
	log := m.logger.With(zap.String("sender", "error"))
	for {
		failure, err := m.failures.Take(ctx)
		if err != nil {
			return nil
		}
		if err := m.opts.Reporter.ReportError(ctx, failure); err != nil {
			m.dropped(log, "error", failure.ID, err)
			continue
		}
		log.Info("error reported", zap.Int64("id", failure.ID), zap.String("kind", string(failure.Kind)))
	}
}

func (m *Manager) dropped(log *zap.Logger, kind string, id int64, err error) {
	log.Error("failed to deliver report, dropping it", zap.Int64("id", id), zap.Error(err))
	m.opts.Metrics.deliveryFailures.WithLabelValues(kind).Inc()
}
