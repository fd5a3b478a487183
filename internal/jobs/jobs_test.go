package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/service"
)

type stubDispatcher struct {
	calls    int
	result   service.DispatchResult
	err      error
	deadline bool
}

func (s *stubDispatcher) DispatchPending(ctx context.Context) (service.DispatchResult, error) {
	s.calls++
	_, s.deadline = ctx.Deadline()
	return s.result, s.err
}

func TestScheduler_AddAndRemove(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("a", "*/5 * * * * *", func() {}))
	assert.Error(t, s.AddJob("a", "*/5 * * * * *", func() {}))
	assert.Error(t, s.AddJob("bad", "not a cron", func() {}))
	assert.Equal(t, []string{"a"}, s.JobNames())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.JobNames())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("tick", "@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestOutboxJob_RunRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	d := &stubDispatcher{result: service.DispatchResult{Published: 2}}
	job := NewOutboxJob(d, m, zap.NewNop(), time.Second)

	job.Run()
	d.err = errors.New("db down")
	job.Run()

	assert.Equal(t, 2, d.calls)
	assert.True(t, d.deadline)
}

func TestRegisterOutboxJob_DefaultSchedule(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	job := NewOutboxJob(&stubDispatcher{}, nil, zap.NewNop(), 0)

	require.NoError(t, RegisterOutboxJob(s, job, ""))
	assert.Equal(t, []string{OutboxJobName}, s.JobNames())
}
