package gudaprim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors a Context reports to.
type Metrics struct {
	KernelLaunches *prometheus.CounterVec
	KernelFailures *prometheus.CounterVec
	KernelDuration *prometheus.HistogramVec
	ScratchInUse   prometheus.Gauge
	ScratchPeak    prometheus.Gauge
	SpinPolls      prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		KernelLaunches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gudaprim_kernel_launches_total",
			Help: "The total number of kernels submitted",
		}, []string{"kernel"}),
		KernelFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gudaprim_kernel_failures_total",
			Help: "The total number of kernels that completed with an error",
		}, []string{"kernel"}),
		KernelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gudaprim_kernel_duration_seconds",
			Help:    "Time from kernel start to completion",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"kernel"}),
		ScratchInUse: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gudaprim_scratch_bytes_in_use",
			Help: "Bytes of pooled scratch currently handed out",
		}),
		ScratchPeak: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gudaprim_scratch_bytes_peak",
			Help: "High-water mark of pooled scratch bytes",
		}),
		SpinPolls: factory.NewCounter(prometheus.CounterOpts{
			Name: "gudaprim_spin_polls_total",
			Help: "Polls of a status word that found it not yet published",
		}),
	}
}
