package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Media exports counters for the upload, serve and delete paths.
type Media struct {
	operationDuration *prometheus.HistogramVec
	operations        *prometheus.CounterVec
	storedBytes       prometheus.Counter
	served            *prometheus.CounterVec
}

// NewMedia registers the media collectors on reg (the default registerer when nil).
func NewMedia(namespace string, reg prometheus.Registerer) (*Media, error) {
	if namespace == "" {
		namespace = "storefront_media"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Media{
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of media pipeline operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Media pipeline operations by outcome.",
		}, []string{"operation", "result"}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Bytes written to the upload root after transformation.",
		}),
		served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "served_total",
			Help:      "Responses of the /uploads endpoint by status code.",
		}, []string{"status"}),
	}

	var err error
	if m.operationDuration, err = register(reg, m.operationDuration); err != nil {
		return nil, err
	}
	if m.operations, err = register(reg, m.operations); err != nil {
		return nil, err
	}
	if m.storedBytes, err = register(reg, m.storedBytes); err != nil {
		return nil, err
	}
	if m.served, err = register(reg, m.served); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveUpload records an upload attempt; result is "ok" or a short error label.
func (m *Media) ObserveUpload(d time.Duration, storedBytes int64, result string) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues("upload").Observe(d.Seconds())
	m.operations.WithLabelValues("upload", result).Inc()
	if result == "ok" {
		m.storedBytes.Add(float64(storedBytes))
	}
}

func (m *Media) ObserveDelete(d time.Duration, result string) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues("delete").Observe(d.Seconds())
	m.operations.WithLabelValues("delete", result).Inc()
}

func (m *Media) ObserveServe(status int) {
	if m == nil {
		return
	}
	m.served.WithLabelValues(fmt.Sprintf("%d", status)).Inc()
}

// register reuses an already registered collector so a second NewMedia on
// the same registry (tests, re-wiring) shares the series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register media metric: %w", err)
	}
	return c, nil
}
