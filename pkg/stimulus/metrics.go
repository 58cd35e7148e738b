package stimulus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pulseCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uiotest",
		Subsystem: "stimulus",
		Name:      "pulse_count",
		Help:      "Number of pulses driven onto the stimulus line",
	})
	loopbackLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "uiotest",
		Subsystem: "stimulus",
		Name:      "loopback_latency_seconds",
		Help:      "Time from the rising edge of a stimulus pulse to the handled interrupt",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})
)
