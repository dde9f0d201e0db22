package metrics

import (
	"testing"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

type recordingClient struct {
	names  []string
	labels [][]metricsTypes.MetricsLabel
}

func (r *recordingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	r.names = append(r.names, name)
	r.labels = append(r.labels, labels)
	return nil
}

func (r *recordingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	r.names = append(r.names, name)
	r.labels = append(r.labels, labels)
	return nil
}

func (r *recordingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	r.names = append(r.names, name)
	r.labels = append(r.labels, labels)
	return nil
}

func Test_MetricsSink(t *testing.T) {
	client := &recordingClient{}
	sink, err := NewMetricsSink(&MetricsSinkConfig{
		DefaultLabels: []metricsTypes.MetricsLabel{{Name: "env", Value: "test"}},
	}, []metricsTypes.IMetricsClient{client})
	assert.Nil(t, err)

	_ = sink.Incr(metricsTypes.Metric_Incr_ProposalPassed, []metricsTypes.MetricsLabel{{Name: "type", Value: "STAKING"}}, 1)
	_ = sink.Gauge(metricsTypes.Metric_Gauge_ArmedTimers, 1, nil)
	_ = sink.Timing(metricsTypes.Metric_Timing_ExecutionDuration, time.Second, nil)

	assert.Equal(t, []string{
		metricsTypes.Metric_Incr_ProposalPassed,
		metricsTypes.Metric_Gauge_ArmedTimers,
		metricsTypes.Metric_Timing_ExecutionDuration,
	}, client.names)
	assert.Len(t, client.labels[0], 2)
	assert.Len(t, client.labels[1], 1)

	assert.Nil(t, NewNoopMetricsSink().Incr("anything", nil, 1))
}
