package freebox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbx_api_calls_total",
			Help: "Total number of appliance API calls by endpoint family and outcome.",
		},
		[]string{"family", "outcome"},
	)
	apiCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fbx_api_call_duration_seconds",
			Help:    "Duration of appliance API calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"family"},
	)
)

func init() {
	prometheus.MustRegister(apiCallsTotal)
	prometheus.MustRegister(apiCallDuration)
}

func observeCall(family string, res Result, dur time.Duration) {
	outcome := "ok"
	if !res.Success {
		outcome = res.ErrorCode
	}
	apiCallsTotal.WithLabelValues(family, outcome).Inc()
	apiCallDuration.WithLabelValues(family).Observe(dur.Seconds())
}
