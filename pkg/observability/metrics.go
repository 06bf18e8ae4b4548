package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registration pipeline,
// retargeted from the teacher's request/index/cache metrics to
// registration/search/descriptor concerns (SPEC_FULL.md A.3).
type Metrics struct {
	// Pipeline request metrics
	AlignRequestsTotal *prometheus.CounterVec
	AlignDuration      *prometheus.HistogramVec
	AlignErrors        *prometheus.CounterVec

	// Registration metrics
	RegistrationIterations *prometheus.HistogramVec
	RegistrationFitness    *prometheus.HistogramVec
	RegistrationConverged  *prometheus.CounterVec

	// Search metrics
	SearchLatency prometheus.Histogram

	// Keypoint / descriptor / correspondence metrics
	KeypointsDetected     *prometheus.CounterVec
	DescriptorExtractTime *prometheus.HistogramVec
	CorrespondencesTotal  *prometheus.CounterVec

	// System metrics
	GoroutinesCount prometheus.Gauge
	MemoryUsage     prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		AlignRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointcloud_align_requests_total",
				Help: "Total number of Align requests by status",
			},
			[]string{"status"},
		),
		AlignDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pointcloud_align_duration_seconds",
				Help:    "Align request duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"coarse_method", "fine_method"},
		),
		AlignErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointcloud_align_errors_total",
				Help: "Total number of Align errors by reason",
			},
			[]string{"reason"},
		),

		RegistrationIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pointcloud_registration_iterations",
				Help:    "Number of iterations a registration run took before terminating",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
			},
			[]string{"method"},
		),
		RegistrationFitness: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pointcloud_registration_fitness",
				Help:    "Final fitness score (lower is better) of a registration run",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method"},
		),
		RegistrationConverged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointcloud_registration_converged_total",
				Help: "Total number of registration runs by termination reason",
			},
			[]string{"method", "reason"},
		),

		SearchLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pointcloud_search_latency_seconds",
				Help:    "Nearest-neighbour search latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),

		KeypointsDetected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointcloud_keypoints_detected_total",
				Help: "Total number of keypoints detected by detector",
			},
			[]string{"detector"},
		),
		DescriptorExtractTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pointcloud_descriptor_extract_duration_seconds",
				Help:    "Descriptor extraction duration in seconds by descriptor type",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"descriptor"},
		),
		CorrespondencesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pointcloud_correspondences_total",
				Help: "Total number of correspondences generated by pipeline stage",
			},
			[]string{"stage"},
		),

		GoroutinesCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pointcloud_goroutines",
				Help: "Current number of goroutines",
			},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pointcloud_memory_bytes",
				Help: "Memory usage in bytes",
			},
		),
	}
}

// RecordAlign records a completed Align call.
func (m *Metrics) RecordAlign(coarseMethod, fineMethod, status string, duration time.Duration) {
	m.AlignRequestsTotal.WithLabelValues(status).Inc()
	m.AlignDuration.WithLabelValues(coarseMethod, fineMethod).Observe(duration.Seconds())
}

// RecordAlignError records an Align failure by reason.
func (m *Metrics) RecordAlignError(reason string) {
	m.AlignErrors.WithLabelValues(reason).Inc()
}

// RecordRegistration records one coarse or fine registration run's outcome.
func (m *Metrics) RecordRegistration(method string, iterations int, fitness float64, reason string) {
	m.RegistrationIterations.WithLabelValues(method).Observe(float64(iterations))
	m.RegistrationFitness.WithLabelValues(method).Observe(fitness)
	m.RegistrationConverged.WithLabelValues(method, reason).Inc()
}

// RecordSearch records a nearest-neighbour search latency.
func (m *Metrics) RecordSearch(duration time.Duration) {
	m.SearchLatency.Observe(duration.Seconds())
}

// RecordKeypoints records keypoints detected by a given detector.
func (m *Metrics) RecordKeypoints(detector string, count int) {
	m.KeypointsDetected.WithLabelValues(detector).Add(float64(count))
}

// RecordDescriptorExtract records descriptor extraction latency.
func (m *Metrics) RecordDescriptorExtract(descriptor string, duration time.Duration) {
	m.DescriptorExtractTime.WithLabelValues(descriptor).Observe(duration.Seconds())
}

// RecordCorrespondences records correspondences generated at a pipeline stage.
func (m *Metrics) RecordCorrespondences(stage string, count int) {
	m.CorrespondencesTotal.WithLabelValues(stage).Add(float64(count))
}

// UpdateGoroutineCount updates the goroutine count gauge.
func (m *Metrics) UpdateGoroutineCount(count int) {
	m.GoroutinesCount.Set(float64(count))
}

// UpdateMemoryUsage updates the memory usage gauge.
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}
