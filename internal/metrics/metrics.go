package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all Prometheus metrics for the geopulse service
type Metrics struct {
	SignalsStored    *prometheus.CounterVec
	StatsRuns        *prometheus.CounterVec
	StatsRunDuration *prometheus.HistogramVec
	AnalysisRequests *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
}
