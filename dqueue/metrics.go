package dqueue

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

// queueMetrics holds the counters/timers a running subscription reports into the
// process-wide go-metrics registry, namespaced by queue name
// ("dqueue.<queue>.<suffix>") so each queue's values are kept apart.
type queueMetrics struct {
	claimed      metrics.Counter
	acked        metrics.Counter
	rescheduled  metrics.Counter
	deadLettered metrics.Counter
	handleTimer  metrics.Timer
}

func newQueueMetrics(queue string) *queueMetrics {
	return &queueMetrics{
		claimed:      metrics.GetOrRegisterCounter(metricName(queue, "claimed"), metrics.DefaultRegistry),
		acked:        metrics.GetOrRegisterCounter(metricName(queue, "acked"), metrics.DefaultRegistry),
		rescheduled:  metrics.GetOrRegisterCounter(metricName(queue, "rescheduled"), metrics.DefaultRegistry),
		deadLettered: metrics.GetOrRegisterCounter(metricName(queue, "dead_lettered"), metrics.DefaultRegistry),
		handleTimer:  metrics.GetOrRegisterTimer(metricName(queue, "handle_duration"), metrics.DefaultRegistry),
	}
}

func metricName(queue, suffix string) string {
	return fmt.Sprintf("dqueue.%s.%s", queue, suffix)
}
