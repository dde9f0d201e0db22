package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_ProposalActivated       = "proposal_activated"
	Metric_Incr_ProposalPassed          = "proposal_passed"
	Metric_Incr_ProposalRejected        = "proposal_rejected"
	Metric_Incr_ProposalExecuted        = "proposal_executed"
	Metric_Incr_ProposalExecutionFailed = "proposal_execution_failed"
	Metric_Incr_BatchCompleted          = "distribution_batch_completed"
	Metric_Incr_BatchFailed             = "distribution_batch_failed"
	Metric_Incr_VoteCast                = "vote_cast"
	Metric_Incr_HttpRequest             = "rpc_http_request"

	Metric_Gauge_ArmedTimers = "scheduler_armed_timers"

	Metric_Timing_ExecutionDuration = "proposal_execution_duration"
	Metric_Timing_HttpDuration      = "rpc_http_duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_ProposalActivated,
			Labels: []string{"type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ProposalPassed,
			Labels: []string{"type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ProposalRejected,
			Labels: []string{"type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ProposalExecuted,
			Labels: []string{"type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ProposalExecutionFailed,
			Labels: []string{"type", "category"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_BatchCompleted,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_BatchFailed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_VoteCast,
			Labels: []string{"choice"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_HttpRequest,
			Labels: []string{"path", "status"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_ArmedTimers,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_ExecutionDuration,
			Labels: []string{"type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_HttpDuration,
			Labels: []string{"path"},
		},
	},
}
