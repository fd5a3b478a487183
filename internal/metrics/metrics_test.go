package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.StockMutation("reserve")
	m.StockMutation("reserve")
	m.StockMutation("")
	m.Shortage(true)
	m.OutboxDispatch("estimate.invoiced", nil)
	m.OutboxDispatch("estimate.invoiced", errors.New("boom"))
	m.OutboxPending(3)
	m.ObserveJob("outbox-dispatch", 120*time.Millisecond, nil)
	m.SyncPush(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockMutations.WithLabelValues("reserve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockMutations.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.shortages.WithLabelValues("acknowledged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxResult.WithLabelValues("estimate.invoiced", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxResult.WithLabelValues("estimate.invoiced", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.outboxPending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobResult.WithLabelValues("outbox-dispatch", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncPushes.WithLabelValues("success")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StockMutation("reserve")
		m.Transition("paid")
		m.ObserveJob("x", time.Second, nil)
		m.OutboxPending(1)
	})

	empty := New(nil)
	assert.NotPanics(t, func() { empty.SyncPush(nil) })
}
