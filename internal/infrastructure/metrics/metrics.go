package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the login service
type Metrics struct {
	// Flow metrics
	FlowsTotal   *prometheus.CounterVec
	FlowDuration prometheus.Histogram
	ActiveFlows  prometheus.Gauge

	// Detection metrics
	SignalsTotal      *prometheus.CounterVec
	StatusPushesTotal *prometheus.CounterVec

	// Credential metrics
	CredentialSaves      prometheus.Counter
	CredentialSaveErrors prometheus.Counter
	Invalidations        prometheus.Counter

	// Kafka metrics
	KafkaMessagesProduced prometheus.Counter
	KafkaProduceErrors    *prometheus.CounterVec
	KafkaProduceDuration  prometheus.Histogram
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}

// NewMetrics creates all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		FlowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xhs_login_flows_total",
				Help: "Total number of finished login flows by outcome",
			},
			[]string{"outcome"},
		),
		FlowDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "xhs_login_flow_duration_seconds",
			Help:    "Duration of login flows in seconds",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120, 180, 240},
		}),
		ActiveFlows: f.NewGauge(prometheus.GaugeOpts{
			Name: "xhs_login_active_flows",
			Help: "Current number of running login flows",
		}),

		SignalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xhs_login_completion_signals_total",
				Help: "Total number of confirmations by detecting signal",
			},
			[]string{"signal"},
		),
		StatusPushesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xhs_login_status_pushes_total",
				Help: "Total number of QR status pushes observed by code",
			},
			[]string{"code"},
		),

		CredentialSaves: f.NewCounter(prometheus.CounterOpts{
			Name: "xhs_login_credential_saves_total",
			Help: "Total number of credentials saved",
		}),
		CredentialSaveErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "xhs_login_credential_save_errors_total",
			Help: "Total number of failed credential saves",
		}),
		Invalidations: f.NewCounter(prometheus.CounterOpts{
			Name: "xhs_login_credential_invalidations_total",
			Help: "Total number of credentials invalidated administratively",
		}),

		KafkaMessagesProduced: f.NewCounter(prometheus.CounterOpts{
			Name: "xhs_login_kafka_messages_produced_total",
			Help: "Total number of login events produced to Kafka",
		}),
		KafkaProduceErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xhs_login_kafka_produce_errors_total",
				Help: "Total number of Kafka produce errors",
			},
			[]string{"error_type"},
		),
		KafkaProduceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "xhs_login_kafka_produce_duration_seconds",
			Help:    "Duration of Kafka produce operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// RecordFlow records a finished flow
func (m *Metrics) RecordFlow(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.FlowsTotal.WithLabelValues(outcome).Inc()
	m.FlowDuration.Observe(duration.Seconds())
}

// RecordSignal records which signal confirmed a login
func (m *Metrics) RecordSignal(signal string) {
	m.SignalsTotal.WithLabelValues(signal).Inc()
}

// RecordStatusPush records an observed status push
func (m *Metrics) RecordStatusPush(code int) {
	m.StatusPushesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordCredentialSave records a save attempt
func (m *Metrics) RecordCredentialSave(err error) {
	if err != nil {
		m.CredentialSaveErrors.Inc()
		return
	}
	m.CredentialSaves.Inc()
}

// RecordInvalidation records administratively invalidated credentials
func (m *Metrics) RecordInvalidation(count int64) {
	// Only add positive values to prevent counter from going backwards
	if count > 0 {
		m.Invalidations.Add(float64(count))
	}
}

// FlowStarted increments the active flows gauge
func (m *Metrics) FlowStarted() {
	m.ActiveFlows.Inc()
}

// FlowFinished decrements the active flows gauge
func (m *Metrics) FlowFinished() {
	m.ActiveFlows.Dec()
}

// RecordKafkaMessage records a Kafka message production with duration
func (m *Metrics) RecordKafkaMessage(duration float64) {
	m.KafkaMessagesProduced.Inc()
	m.KafkaProduceDuration.Observe(duration)
}

// RecordKafkaError records a Kafka production error with error type
func (m *Metrics) RecordKafkaError(errorType string) {
	if errorType == "" {
		errorType = "unknown"
	}
	m.KafkaProduceErrors.WithLabelValues(errorType).Inc()
}
