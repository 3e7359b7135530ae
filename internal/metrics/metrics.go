package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters of the order service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Requests     *prometheus.CounterVec
	LatencyMS    *prometheus.HistogramVec
	Transactions *prometheus.CounterVec
	Authorize    *prometheus.CounterVec
	Tasks        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(service string, reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinema",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cinema",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinema",
		Subsystem: service,
		Name:      "transactions_total",
		Help:      "Place-order transaction transitions.",
	}, []string{"event"})
	authorize := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinema",
		Subsystem: service,
		Name:      "authorize_actions_total",
		Help:      "Authorize actions by object type and outcome.",
	}, []string{"object_type", "outcome"})
	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinema",
		Subsystem: service,
		Name:      "tasks_total",
		Help:      "Task executions by name and outcome.",
	}, []string{"name", "outcome"})

	reg.MustRegister(requests, latency, transactions, authorize, tasks)
	return &Metrics{
		Requests:     requests,
		LatencyMS:    latency,
		Transactions: transactions,
		Authorize:    authorize,
		Tasks:        tasks,
	}
}

// Transaction counts a transaction event such as "started" or "confirmed".
func (m *Metrics) Transaction(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Transactions.WithLabelValues(event).Add(float64(n))
}

func (m *Metrics) AuthorizeAction(objectType, outcome string) {
	if m == nil {
		return
	}
	m.Authorize.WithLabelValues(objectType, outcome).Inc()
}

func (m *Metrics) Task(name, outcome string) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(name, outcome).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
