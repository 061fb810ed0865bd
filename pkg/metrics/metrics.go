package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Consume outcomes recorded per delivery.
const (
	OutcomeOK           = "ok"
	OutcomeDecodeError  = "decode_error"
	OutcomeHandlerError = "handler_error"
	OutcomePanic        = "panic"
)

// Metrics holds the pipeline collectors on a private registry.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	published       prometheus.Counter
	publishFailures prometheus.Counter
	consumed        *prometheus.CounterVec
	reconnects      prometheus.Counter
	consumerState   prometheus.Gauge
	predictions     *prometheus.CounterVec
	detections      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_messages_published_total",
			Help: "Detection results published to the work queue",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_publish_failures_total",
			Help: "Best-effort publishes that failed and were dropped",
		}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_messages_consumed_total",
			Help: "Deliveries acknowledged by the worker, by outcome",
		}, []string{"outcome"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_consumer_reconnects_total",
			Help: "Consumer connection attempts that failed or dropped",
		}),
		consumerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_consumer_state",
			Help: "Consumer state (0=disconnected, 1=connecting, 2=consuming, 3=terminated)",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_predictions_total",
			Help: "Prediction requests handled by the API, by status",
		}, []string{"status"}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_detections_total",
			Help: "Objects detected across all predictions",
		}),
	}

	m.registry.MustRegister(
		m.published,
		m.publishFailures,
		m.consumed,
		m.reconnects,
		m.consumerState,
		m.predictions,
		m.detections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) IncPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *Metrics) IncPublishFailure() {
	if m != nil {
		m.publishFailures.Inc()
	}
}

func (m *Metrics) IncConsumed(outcome string) {
	if m != nil {
		m.consumed.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncReconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) SetConsumerState(state int) {
	if m != nil {
		m.consumerState.Set(float64(state))
	}
}

func (m *Metrics) ObservePrediction(status string, detections int) {
	if m != nil {
		m.predictions.WithLabelValues(status).Inc()
		m.detections.Add(float64(detections))
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
