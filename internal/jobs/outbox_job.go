package jobs

import (
	"context"
	"time"

	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/service"
	"go.uber.org/zap"
)

// OutboxJobName is the name the dispatch job is registered under
const OutboxJobName = "outbox_dispatch"

// OutboxDispatcher delivers queued document events
type OutboxDispatcher interface {
	DispatchPending(ctx context.Context) (service.DispatchResult, error)
}

// OutboxJob drains the outbox on a schedule
type OutboxJob struct {
	dispatcher OutboxDispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	timeout    time.Duration
}

// NewOutboxJob creates the job. timeout bounds one run.
func NewOutboxJob(dispatcher OutboxDispatcher, m *metrics.Metrics, logger *zap.Logger, timeout time.Duration) *OutboxJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &OutboxJob{
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		timeout:    timeout,
	}
}

// Run performs one dispatch pass
func (j *OutboxJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	result, err := j.dispatcher.DispatchPending(ctx)
	j.metrics.ObserveJob(OutboxJobName, time.Since(start), err)
	if err != nil {
		j.logger.Error("outbox dispatch run failed", zap.Error(err))
		return
	}
	if result.Published == 0 && result.Failed == 0 {
		return
	}
	j.logger.Info("outbox dispatch run",
		zap.Int("published", result.Published),
		zap.Int("failed", result.Failed),
		zap.Int64("pending", result.Pending),
		zap.Duration("duration", time.Since(start)))
}

// RegisterOutboxJob adds the dispatch job to the scheduler
func RegisterOutboxJob(s *Scheduler, job *OutboxJob, schedule string) error {
	if schedule == "" {
		schedule = "*/15 * * * * *"
	}
	return s.AddJob(OutboxJobName, schedule, job.Run)
}
