// Package metrics holds the prometheus collectors for the recognition
// endpoint and the client dispatcher. All methods are safe on a nil
// *Metrics, which disables collection.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "facerecog"

// Dispatch result classes.
const (
	ResultOK          = "ok"
	ResultRecoverable = "recoverable"
	ResultFatal       = "fatal"
)

// Metrics contains the endpoint and dispatcher collectors.
type Metrics struct {
	// Endpoint metrics
	EndpointRequests *prometheus.CounterVec
	EndpointDuration *prometheus.HistogramVec
	FacesDetected    prometheus.Counter
	Identifications  *prometheus.CounterVec

	// Dispatcher metrics
	QueueDepth      prometheus.Gauge
	DispatchResults *prometheus.CounterVec
	DispatchLatency prometheus.Histogram
}

// New creates all collectors. Nothing is registered yet.
func New() *Metrics {
	return &Metrics{
		EndpointRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "endpoint",
				Name:      "requests_total",
				Help:      "Recognition requests by route and HTTP status",
			},
			[]string{"route", "status"},
		),

		EndpointDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "endpoint",
				Name:      "duration_seconds",
				Help:      "Recognition request handling time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		FacesDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "endpoint",
				Name:      "faces_detected_total",
				Help:      "Face rectangles returned by the detector",
			},
		),

		Identifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "endpoint",
				Name:      "identifications_total",
				Help:      "Predicted identities",
			},
			[]string{"person"},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "queue_depth",
				Help:      "Frames waiting in the dispatch queue",
			},
		),

		DispatchResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "results_total",
				Help:      "Dispatched requests by outcome (ok, recoverable, fatal)",
			},
			[]string{"class"},
		),

		DispatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "latency_seconds",
				Help:      "Round trip time of a recognition request",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// Register adds every collector to reg. Collectors already registered with
// the same description are tolerated.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.EndpointRequests,
		m.EndpointDuration,
		m.FacesDetected,
		m.Identifications,
		m.QueueDepth,
		m.DispatchResults,
		m.DispatchLatency,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRequest records one handled endpoint request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.EndpointRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.EndpointDuration.WithLabelValues(route).Observe(d.Seconds())
}

// AddFaces counts detected face rectangles.
func (m *Metrics) AddFaces(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FacesDetected.Add(float64(n))
}

// ObserveIdentity counts a predicted identity.
func (m *Metrics) ObserveIdentity(person string) {
	if m == nil || person == "" {
		return
	}
	m.Identifications.WithLabelValues(person).Inc()
}

// SetQueueDepth publishes the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// ObserveDispatch records the outcome and latency of one request.
func (m *Metrics) ObserveDispatch(class string, latency time.Duration) {
	if m == nil {
		return
	}
	m.DispatchResults.WithLabelValues(class).Inc()
	m.DispatchLatency.Observe(latency.Seconds())
}
