package payment

import (
	"context"
	"time"

	"github.com/ashendes/order-fulfillment/internal/metrics"
	"github.com/ashendes/order-fulfillment/internal/models"
	log "github.com/sirupsen/logrus"
)

// StatisticsReporter periodically logs payment counts per status and
// publishes them as a gauge.
type StatisticsReporter struct {
	repo Repository
}

func NewStatisticsReporter(repo Repository) *StatisticsReporter {
	return &StatisticsReporter{repo: repo}
}

// Report takes one snapshot of the counts.
func (r *StatisticsReporter) Report(ctx context.Context) (models.PaymentStatistics, error) {
	stats, err := r.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	fields := log.Fields{}
	for _, status := range models.PaymentStatuses {
		n := stats[status]
		fields[string(status)] = n
		metrics.PaymentsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
	log.WithFields(fields).Info("Payment statistics")
	return stats, nil
}

func (r *StatisticsReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Report(ctx); err != nil {
				log.WithError(err).Warn("Could not collect payment statistics")
			}
		}
	}
}
