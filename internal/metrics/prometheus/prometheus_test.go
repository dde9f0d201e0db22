package prometheus

import (
	"testing"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics/metricsTypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_PrometheusMetricsClient(t *testing.T) {
	registry := prometheus.NewRegistry()
	client, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
		Metrics:  metricsTypes.MetricTypes,
		Registry: registry,
	}, zap.NewNop())
	assert.Nil(t, err)

	t.Run("Incr fills in undeclared labels", func(t *testing.T) {
		err := client.Incr(metricsTypes.Metric_Incr_ProposalExecuted, []metricsTypes.MetricsLabel{
			{Name: "type", Value: "DISTRIBUTION"},
			{Name: "unknown", Value: "dropped"},
		}, 1)
		assert.Nil(t, err)

		counter := client.counters[metricsTypes.Metric_Incr_ProposalExecuted].With(prometheus.Labels{"type": "DISTRIBUTION"})
		assert.Equal(t, float64(1), testutil.ToFloat64(counter))
	})
	t.Run("Gauge and timing record values", func(t *testing.T) {
		assert.Nil(t, client.Gauge(metricsTypes.Metric_Gauge_ArmedTimers, 4, nil))
		assert.Equal(t, float64(4), testutil.ToFloat64(client.gauges[metricsTypes.Metric_Gauge_ArmedTimers].With(prometheus.Labels{})))

		assert.Nil(t, client.Timing(metricsTypes.Metric_Timing_ExecutionDuration, time.Second, nil))
	})
	t.Run("Unknown metrics are ignored", func(t *testing.T) {
		assert.Nil(t, client.Incr("nope", nil, 1))
	})
}
