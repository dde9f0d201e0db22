package dogstatsd

import (
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_DogStatsdMetricsClient(t *testing.T) {
	client := newWithClient(&statsd.NoOpClient{}, 0, zap.NewNop())

	t.Run("Defaults the sample rate", func(t *testing.T) {
		assert.Equal(t, float64(1), client.sampleRate)
	})
	t.Run("Formats labels as tags", func(t *testing.T) {
		tags := client.formatLabels([]metricsTypes.MetricsLabel{{Name: "type", Value: "BURNING"}})
		assert.Equal(t, []string{"type:BURNING"}, tags)
	})
	t.Run("Forwards to the statsd client", func(t *testing.T) {
		assert.Nil(t, client.Incr("proposal_executed", nil, 1))
		assert.Nil(t, client.Gauge("scheduler_armed_timers", 2, nil))
		assert.Nil(t, client.Timing("proposal_execution_duration", time.Second, nil))
	})
}
